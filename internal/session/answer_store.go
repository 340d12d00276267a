package session

import (
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/util"
	"sync"
)

// QuestionStatus 单题的作答状态，供展示层使用
type QuestionStatus struct {
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	Flagged    bool   `json:"flagged"`
	Required   bool   `json:"required"`
}

// AnswerStore 当前尝试的内存作答草稿
// 按题目ID存储，Upsert 做字段级合并；快照时为未作答题目合成空记录，
// 保证提交载荷始终每题一条
type AnswerStore struct {
	mu sync.Mutex

	order     []string
	questions map[string]*model.Question
	drafts    map[string]*AnswerDraft
	flagged   map[string]bool

	version uint64 // 每次 Upsert 递增
	saved   uint64 // 最近一次成功落库的版本
}

func NewAnswerStore(questions []model.Question) *AnswerStore {
	s := &AnswerStore{
		order:     make([]string, 0, len(questions)),
		questions: make(map[string]*model.Question, len(questions)),
		drafts:    make(map[string]*AnswerDraft),
		flagged:   make(map[string]bool),
	}
	for i := range questions {
		s.order = append(s.order, questions[i].ID)
		s.questions[questions[i].ID] = &questions[i]
	}
	return s
}

// Seed 恢复会话时载入已持久化的作答，不标记脏
func (s *AnswerStore) Seed(answers []model.QuestionAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range answers {
		a := &answers[i]
		if _, ok := s.questions[a.QuestionID]; !ok {
			continue
		}
		s.drafts[a.QuestionID] = &AnswerDraft{
			QuestionID:        a.QuestionID,
			AnswerText:        a.AnswerText,
			SelectedOptionIDs: a.SelectedOptionIDs(),
			NumericalAnswer:   a.NumericalAnswer,
			FileUploadURL:     a.FileUploadURL,
			TimeSpentSeconds:  a.TimeSpentSeconds,
		}
	}
}

// Upsert 合并更新一题的草稿；未知题目ID返回错误
func (s *AnswerStore) Upsert(questionID string, patch AnswerPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[questionID]; !ok {
		return util.ErrQuestionNotFound
	}

	draft, ok := s.drafts[questionID]
	if !ok {
		draft = &AnswerDraft{QuestionID: questionID}
		s.drafts[questionID] = draft
	}

	if patch.AnswerText != nil {
		draft.AnswerText = *patch.AnswerText
	}
	if patch.SelectedOptionIDs != nil {
		draft.SelectedOptionIDs = append([]string(nil), (*patch.SelectedOptionIDs)...)
	}
	if patch.NumericalAnswer != nil {
		draft.NumericalAnswer = patch.NumericalAnswer
	}
	if patch.FileUploadURL != nil {
		draft.FileUploadURL = *patch.FileUploadURL
	}
	if patch.TimeSpentSeconds != nil {
		draft.TimeSpentSeconds = *patch.TimeSpentSeconds
	}

	s.version++
	return nil
}

// Snapshot 按题目顺序返回全量作答，未作答的题目合成空草稿
func (s *AnswerStore) Snapshot() []AnswerDraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AnswerDraft, 0, len(s.order))
	for _, id := range s.order {
		if draft, ok := s.drafts[id]; ok {
			copied := *draft
			copied.SelectedOptionIDs = append([]string(nil), draft.SelectedOptionIDs...)
			out = append(out, copied)
			continue
		}
		out = append(out, AnswerDraft{QuestionID: id})
	}
	return out
}

// Dirty 是否有未落库的修改
func (s *AnswerStore) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version > s.saved
}

// Version 当前修改版本号
func (s *AnswerStore) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// MarkSaved 标记某版本已落库；落库期间的新修改保持脏状态
func (s *AnswerStore) MarkSaved(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.saved {
		s.saved = version
	}
}

// Flag 标记题目待复查
func (s *AnswerStore) Flag(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return util.ErrQuestionNotFound
	}
	s.flagged[questionID] = true
	return nil
}

func (s *AnswerStore) Unflag(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return util.ErrQuestionNotFound
	}
	delete(s.flagged, questionID)
	return nil
}

// Statuses 每题的已答/标记状态，按题目顺序
func (s *AnswerStore) Statuses() []QuestionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]QuestionStatus, 0, len(s.order))
	for _, id := range s.order {
		status := QuestionStatus{
			QuestionID: id,
			Flagged:    s.flagged[id],
			Required:   s.questions[id].IsRequired,
		}
		if draft, ok := s.drafts[id]; ok && !draft.Empty() {
			status.Answered = true
		}
		out = append(out, status)
	}
	return out
}

// AnsweredCount 已作答题目数
func (s *AnswerStore) AnsweredCount() int {
	count := 0
	for _, status := range s.Statuses() {
		if status.Answered {
			count++
		}
	}
	return count
}

// QuestionCount 题目总数
func (s *AnswerStore) QuestionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
