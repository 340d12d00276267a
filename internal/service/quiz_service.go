package service

import (
	"context"
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/repository"
	"edulearn_backend/internal/util"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const studentQuizCacheTTL = 5 * time.Minute

type QuizService struct {
	Repo  *repository.QuizRepository
	Redis *redis.Client
}

func NewQuizService(repo *repository.QuizRepository, rdb *redis.Client) *QuizService {
	return &QuizService{Repo: repo, Redis: rdb}
}

type QuestionOptionReq struct {
	OptionText string `json:"optionText" binding:"required"`
	IsCorrect  bool   `json:"isCorrect"`
	OrderIndex int    `json:"orderIndex"`
}

type QuestionReq struct {
	QuestionText   string              `json:"questionText" binding:"required"`
	QuestionType   model.QuestionType  `json:"questionType" binding:"required"`
	Points         float64             `json:"points"`
	OrderIndex     int                 `json:"orderIndex"`
	Explanation    string              `json:"explanation"`
	IsRequired     bool                `json:"isRequired"`
	CorrectAnswers []string            `json:"correctAnswers"`
	Options        []QuestionOptionReq `json:"options"`
}

type QuizReq struct {
	Title                  *string              `json:"title"`
	Description            *string              `json:"description"`
	Instructions           *string              `json:"instructions"`
	CourseID               *string              `json:"courseId"`
	TimeLimitMinutes       *int                 `json:"timeLimitMinutes"`
	MaxAttempts            *int                 `json:"maxAttempts"`
	PassingScore           *float64             `json:"passingScore"`
	QuizType               *model.QuizType      `json:"quizType"`
	ScoringPolicy          *model.ScoringPolicy `json:"scoringPolicy"`
	IsRandomized           *bool                `json:"isRandomized"`
	ShowResultsImmediately *bool                `json:"showResultsImmediately"`
	ShowCorrectAnswers     *bool                `json:"showCorrectAnswers"`
	AllowReview            *bool                `json:"allowReview"`
	AvailableFrom          *time.Time           `json:"availableFrom"`
	AvailableUntil         *time.Time           `json:"availableUntil"`
	Questions              *[]QuestionReq       `json:"questions"`
}

// validateQuestion 校验题目定义与其题型是否自洽
func validateQuestion(req *QuestionReq) error {
	if req.Points <= 0 {
		return errors.New("question points must be positive")
	}

	switch req.QuestionType {
	case model.MultipleChoice, model.TrueFalse:
		correct := 0
		for _, opt := range req.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if len(req.Options) < 2 {
			return errors.New("choice question needs at least two options")
		}
		if correct != 1 {
			return errors.New("single-choice question needs exactly one correct option")
		}
	case model.MultipleSelect:
		correct := 0
		for _, opt := range req.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if len(req.Options) < 2 {
			return errors.New("choice question needs at least two options")
		}
		if correct == 0 {
			return errors.New("multi-select question needs at least one correct option")
		}
	case model.ShortAnswer:
		if len(req.CorrectAnswers) == 0 {
			return errors.New("short-answer question needs accepted answers")
		}
	case model.Numerical:
		if len(req.CorrectAnswers) == 0 {
			return errors.New("numerical question needs accepted values")
		}
		for _, v := range req.CorrectAnswers {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("invalid numerical accepted value: %s", v)
			}
		}
	case model.Essay, model.FileUpload, model.FillInBlank:
		// 人工评分题型不要求标准答案
	default:
		return fmt.Errorf("unsupported question type: %s", req.QuestionType)
	}
	return nil
}

func buildQuestions(reqs []QuestionReq) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		if err := validateQuestion(req); err != nil {
			return nil, err
		}

		q := model.Question{
			QuestionText: req.QuestionText,
			QuestionType: req.QuestionType,
			Points:       req.Points,
			OrderIndex:   req.OrderIndex,
			Explanation:  req.Explanation,
			IsRequired:   req.IsRequired,
		}
		q.SetAcceptedAnswers(req.CorrectAnswers)

		for j, optReq := range req.Options {
			q.Options = append(q.Options, model.QuestionOption{
				OptionText: optReq.OptionText,
				IsCorrect:  optReq.IsCorrect,
				OrderIndex: j,
			})
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (s *QuizService) CreateQuiz(creatorID uint, req QuizReq) (*model.Quiz, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, errors.New("title is required")
	}

	quiz := &model.Quiz{
		Title:                  *req.Title,
		CreatedBy:              creatorID,
		MaxAttempts:            1,
		QuizType:               model.QuizTypeGraded,
		ScoringPolicy:          model.PolicyHighestScore,
		ShowResultsImmediately: true,
		AllowReview:            true,
	}
	applyQuizReq(quiz, &req)

	if quiz.MaxAttempts < 1 {
		return nil, errors.New("maxAttempts must be at least 1")
	}

	if req.Questions != nil {
		questions, err := buildQuestions(*req.Questions)
		if err != nil {
			return nil, err
		}
		quiz.Questions = questions
	}

	if err := s.Repo.Create(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func applyQuizReq(quiz *model.Quiz, req *QuizReq) {
	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.Instructions != nil {
		quiz.Instructions = *req.Instructions
	}
	if req.CourseID != nil {
		quiz.CourseID = *req.CourseID
	}
	if req.TimeLimitMinutes != nil {
		quiz.TimeLimitMinutes = req.TimeLimitMinutes
	}
	if req.MaxAttempts != nil {
		quiz.MaxAttempts = *req.MaxAttempts
	}
	if req.PassingScore != nil {
		quiz.PassingScore = req.PassingScore
	}
	if req.QuizType != nil {
		quiz.QuizType = *req.QuizType
	}
	if req.ScoringPolicy != nil {
		quiz.ScoringPolicy = *req.ScoringPolicy
	}
	if req.IsRandomized != nil {
		quiz.IsRandomized = *req.IsRandomized
	}
	if req.ShowResultsImmediately != nil {
		quiz.ShowResultsImmediately = *req.ShowResultsImmediately
	}
	if req.ShowCorrectAnswers != nil {
		quiz.ShowCorrectAnswers = *req.ShowCorrectAnswers
	}
	if req.AllowReview != nil {
		quiz.AllowReview = *req.AllowReview
	}
	if req.AvailableFrom != nil {
		quiz.AvailableFrom = req.AvailableFrom
	}
	if req.AvailableUntil != nil {
		quiz.AvailableUntil = req.AvailableUntil
	}
}

// UpdateQuiz 有进行中尝试的试卷不可修改
func (s *QuizService) UpdateQuiz(quizID string, req QuizReq) (*model.Quiz, error) {
	quiz, err := s.Repo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}

	locked, err := s.Repo.HasActiveAttempts(quizID)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, util.ErrQuizLocked
	}

	applyQuizReq(quiz, &req)
	if quiz.MaxAttempts < 1 {
		return nil, errors.New("maxAttempts must be at least 1")
	}

	if req.Questions != nil {
		questions, err := buildQuestions(*req.Questions)
		if err != nil {
			return nil, err
		}
		if err := s.Repo.ReplaceQuestions(quizID, questions); err != nil {
			return nil, err
		}
	}

	quiz.Questions = nil
	if err := s.Repo.Update(quiz); err != nil {
		return nil, err
	}

	s.invalidateCache(quizID)
	return s.Repo.FindByID(quizID)
}

func (s *QuizService) DeleteQuiz(quizID string) error {
	locked, err := s.Repo.HasActiveAttempts(quizID)
	if err != nil {
		return err
	}
	if locked {
		return util.ErrQuizLocked
	}
	s.invalidateCache(quizID)
	return s.Repo.Delete(quizID)
}

func (s *QuizService) SetPublished(quizID string, published bool) error {
	if _, err := s.Repo.FindByID(quizID); err != nil {
		return util.ErrQuizNotFound
	}
	s.invalidateCache(quizID)
	return s.Repo.SetPublished(quizID, published)
}

func (s *QuizService) GetQuizForTeacher(quizID string) (*model.Quiz, error) {
	quiz, err := s.Repo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	return quiz, nil
}

// StudentQuestionView 学生视角的题目，不含正确答案与解析
type StudentQuestionView struct {
	ID           string              `json:"id"`
	QuestionText string              `json:"questionText"`
	QuestionType model.QuestionType  `json:"questionType"`
	Points       float64             `json:"points"`
	OrderIndex   int                 `json:"orderIndex"`
	IsRequired   bool                `json:"isRequired"`
	Options      []StudentOptionView `json:"options,omitempty"`
}

type StudentOptionView struct {
	ID         string `json:"id"`
	OptionText string `json:"optionText"`
	OrderIndex int    `json:"orderIndex"`
}

type StudentQuizView struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Instructions     string                `json:"instructions"`
	TimeLimitMinutes *int                  `json:"timeLimitMinutes,omitempty"`
	MaxAttempts      int                   `json:"maxAttempts"`
	QuizType         model.QuizType        `json:"quizType"`
	QuestionCount    int                   `json:"questionCount"`
	TotalPoints      float64               `json:"totalPoints"`
	AvailableFrom    *time.Time            `json:"availableFrom,omitempty"`
	AvailableUntil   *time.Time            `json:"availableUntil,omitempty"`
	Questions        []StudentQuestionView `json:"questions"`
}

// GetQuizForStudent 学生视角的试卷
// attemptID 非空且开启乱序时，题目顺序按该次尝试确定性打乱
func (s *QuizService) GetQuizForStudent(ctx context.Context, quizID, attemptID string) (*StudentQuizView, error) {
	view, err := s.loadStudentView(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if attemptID != "" {
		if quiz, err := s.Repo.FindByID(quizID); err == nil && quiz.IsRandomized {
			shuffleQuestions(view.Questions, attemptID)
		}
	}
	return view, nil
}

func (s *QuizService) loadStudentView(ctx context.Context, quizID string) (*StudentQuizView, error) {
	cacheKey := "quiz:student:" + quizID

	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil {
			var view StudentQuizView
			if err := json.Unmarshal([]byte(cached), &view); err == nil {
				return &view, nil
			}
		}
	}

	quiz, err := s.Repo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotPublished
	}

	view := &StudentQuizView{
		ID:               quiz.ID,
		Title:            quiz.Title,
		Description:      quiz.Description,
		Instructions:     quiz.Instructions,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		MaxAttempts:      quiz.MaxAttempts,
		QuizType:         quiz.QuizType,
		QuestionCount:    len(quiz.Questions),
		TotalPoints:      quiz.TotalPoints(),
		AvailableFrom:    quiz.AvailableFrom,
		AvailableUntil:   quiz.AvailableUntil,
	}

	for _, q := range quiz.Questions {
		sq := StudentQuestionView{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Points:       q.Points,
			OrderIndex:   q.OrderIndex,
			IsRequired:   q.IsRequired,
		}
		for _, opt := range q.Options {
			sq.Options = append(sq.Options, StudentOptionView{
				ID:         opt.ID,
				OptionText: opt.OptionText,
				OrderIndex: opt.OrderIndex,
			})
		}
		view.Questions = append(view.Questions, sq)
	}

	if s.Redis != nil {
		if data, err := json.Marshal(view); err == nil {
			s.Redis.Set(ctx, cacheKey, data, studentQuizCacheTTL)
		}
	}
	return view, nil
}

// shuffleQuestions 按尝试ID作种子的确定性乱序，同一次尝试顺序稳定
func shuffleQuestions(questions []StudentQuestionView, attemptID string) {
	h := fnv.New64a()
	h.Write([]byte(attemptID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}

func (s *QuizService) invalidateCache(quizID string) {
	if s.Redis != nil {
		s.Redis.Del(context.Background(), "quiz:student:"+quizID)
	}
}

// ListByCourse 课程下的试卷列表
func (s *QuizService) ListByCourse(courseID string, publishedOnly bool) ([]model.Quiz, error) {
	return s.Repo.ListByCourse(courseID, publishedOnly)
}
