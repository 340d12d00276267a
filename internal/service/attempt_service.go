package service

import (
	"context"
	"edulearn_backend/internal/grading"
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/repository"
	"edulearn_backend/internal/session"
	"edulearn_backend/internal/util"
	"edulearn_backend/pkg/logger"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// AttemptService 尝试生命周期编排
// 同时作为会话引擎的持久化边界：保存、提交、过期全部经由仓储落库
type AttemptService struct {
	QuizRepo *repository.QuizRepository
	Repo     *repository.AttemptRepository
	Storage  *StorageService
	Sessions *session.Manager // 构造后由 app 注入，避免与 Manager 相互依赖
}

func NewAttemptService(quizRepo *repository.QuizRepository, repo *repository.AttemptRepository, storage *StorageService) *AttemptService {
	return &AttemptService{QuizRepo: quizRepo, Repo: repo, Storage: storage}
}

// StartAttemptResp 开卷响应：尝试记录加会话初始状态
type StartAttemptResp struct {
	Attempt *model.QuizAttempt `json:"attempt"`
	State   session.State      `json:"state"`
}

// StartAttempt 开启（或恢复）一次尝试
// 已有进行中的尝试直接恢复其会话，计时从原始截止时间继续
func (s *AttemptService) StartAttempt(userID uint, quizID string) (*StartAttemptResp, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotPublished
	}

	now := time.Now()
	if !quiz.AvailableAt(now) {
		return nil, util.ErrQuizNotAvailable
	}

	attempt, err := s.Repo.CreateAttempt(quiz, userID, now)
	if err != nil {
		return nil, err
	}

	persisted, err := s.Repo.ListAnswers(attempt.ID)
	if err != nil {
		return nil, err
	}

	sess := s.Sessions.Start(quiz, attempt, persisted)
	return &StartAttemptResp{Attempt: attempt, State: sess.State()}, nil
}

// getSession 定位（必要时恢复）用户自己的活动会话
func (s *AttemptService) getSession(userID uint, attemptID string) (*session.Session, error) {
	if sess, ok := s.Sessions.Get(attemptID); ok {
		if sess.Attempt.UserID != userID {
			return nil, util.ErrPermissionDenied
		}
		return sess, nil
	}

	// 服务重启或另一实例创建的尝试：从持久层重建会话
	attempt, err := s.Repo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptNotInProgress
	}

	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}

	persisted, err := s.Repo.ListAnswers(attemptID)
	if err != nil {
		return nil, err
	}

	return s.Sessions.Start(quiz, attempt, persisted), nil
}

// UpsertAnswer 增量更新一题作答
func (s *AttemptService) UpsertAnswer(userID uint, attemptID, questionID string, patch session.AnswerPatch) (*session.State, error) {
	sess, err := s.getSession(userID, attemptID)
	if err != nil {
		return nil, err
	}
	if err := sess.UpsertAnswer(questionID, patch); err != nil {
		return nil, err
	}
	state := sess.State()
	return &state, nil
}

// SaveNow 用户主动保存，失败只作软性警告
func (s *AttemptService) SaveNow(ctx context.Context, userID uint, attemptID string) (saved bool, err error) {
	sess, sessErr := s.getSession(userID, attemptID)
	if sessErr != nil {
		return false, sessErr
	}
	if err := sess.SaveNow(ctx); err != nil {
		logger.Log.Warn("Manual save failed, drafts retained in session",
			zap.String("attemptId", attemptID),
			zap.Error(err))
		return false, nil
	}
	return true, nil
}

// FlagQuestion 标记/取消标记题目待复查
func (s *AttemptService) FlagQuestion(userID uint, attemptID, questionID string, flagged bool) error {
	sess, err := s.getSession(userID, attemptID)
	if err != nil {
		return err
	}
	if flagged {
		return sess.Flag(questionID)
	}
	return sess.Unflag(questionID)
}

// GetState 会话当前状态
func (s *AttemptService) GetState(userID uint, attemptID string) (*session.State, error) {
	sess, err := s.getSession(userID, attemptID)
	if err != nil {
		return nil, err
	}
	state := sess.State()
	return &state, nil
}

// Submit 手动提交
// 会话已结束后的重复提交按幂等空操作处理，返回既有结果
func (s *AttemptService) Submit(ctx context.Context, userID uint, attemptID string) (*session.SubmitOutcome, error) {
	sess, err := s.getSession(userID, attemptID)
	if err != nil {
		if errors.Is(err, util.ErrAttemptNotInProgress) {
			attempt, ferr := s.Repo.FindByID(attemptID)
			if ferr != nil {
				return nil, ferr
			}
			if attempt.UserID != userID {
				return nil, util.ErrPermissionDenied
			}
			return s.SubmitAttempt(ctx, attemptID, nil, session.TriggerManual)
		}
		return nil, err
	}
	return sess.Submit(ctx, session.TriggerManual)
}

// AttachAnswerFile 文件上传题：上传附件并写入作答
func (s *AttemptService) AttachAnswerFile(ctx context.Context, userID uint, attemptID, questionID, originalName string, reader io.Reader, size int64, contentType string) (*session.State, error) {
	sess, err := s.getSession(userID, attemptID)
	if err != nil {
		return nil, err
	}

	var question *model.Question
	for i := range sess.Quiz.Questions {
		if sess.Quiz.Questions[i].ID == questionID {
			question = &sess.Quiz.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, util.ErrQuestionNotFound
	}
	if question.QuestionType != model.FileUpload {
		return nil, fmt.Errorf("question %s does not accept file answers", questionID)
	}

	filename := fmt.Sprintf("answers/%s/%s%s", attemptID, questionID, filepath.Ext(originalName))
	url, err := s.Storage.Upload(ctx, filename, reader, size, contentType)
	if err != nil {
		return nil, err
	}

	if err := sess.UpsertAnswer(questionID, session.AnswerPatch{FileUploadURL: &url}); err != nil {
		return nil, err
	}
	state := sess.State()
	return &state, nil
}

// ---- session.Boundary 实现 ----

func draftsToModels(drafts []session.AnswerDraft) []model.QuestionAnswer {
	answers := make([]model.QuestionAnswer, 0, len(drafts))
	for _, d := range drafts {
		a := model.QuestionAnswer{
			QuestionID:       d.QuestionID,
			AnswerText:       d.AnswerText,
			NumericalAnswer:  d.NumericalAnswer,
			FileUploadURL:    d.FileUploadURL,
			TimeSpentSeconds: d.TimeSpentSeconds,
		}
		a.SetSelectedOptionIDs(d.SelectedOptionIDs)
		answers = append(answers, a)
	}
	return answers
}

func (s *AttemptService) SaveAnswers(ctx context.Context, attemptID string, drafts []session.AnswerDraft) error {
	return s.Repo.SaveAnswers(attemptID, draftsToModels(drafts))
}

// SubmitAttempt 落库提交并立即自动评分
// 对已提交的尝试幂等：不重复转换，返回既有结果
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID string, drafts []session.AnswerDraft, trigger session.SubmitTrigger) (*session.SubmitOutcome, error) {
	attempt, err := s.Repo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	attempt, applied, err := s.Repo.SubmitAttempt(attemptID, draftsToModels(drafts), quiz.AvailableUntil, now)
	if err != nil {
		return nil, err
	}

	// 本次调用完成了转换，或此前提交落库后评分中断：补齐评分
	if applied || attempt.Status == model.AttemptSubmitted {
		if err := s.gradeSubmission(quiz, attempt, now); err != nil {
			return nil, err
		}
	}

	outcome := &session.SubmitOutcome{
		AttemptID:        attempt.ID,
		Status:           string(attempt.Status),
		EarnedPoints:     attempt.EarnedPoints,
		TotalPoints:      attempt.TotalPoints,
		PercentageScore:  attempt.PercentageScore,
		IsLateSubmission: attempt.IsLateSubmission,
		Trigger:          trigger,
	}

	logger.Log.Info("Attempt submitted",
		zap.String("attemptId", attempt.ID),
		zap.String("quizId", quiz.ID),
		zap.String("trigger", string(trigger)),
		zap.String("status", string(attempt.Status)),
		zap.Bool("applied", applied))

	return outcome, nil
}

// gradeSubmission 自动评分并写回；就地更新 attempt 的聚合字段
func (s *AttemptService) gradeSubmission(quiz *model.Quiz, attempt *model.QuizAttempt, now time.Time) error {
	answers, err := s.Repo.ListAnswers(attempt.ID)
	if err != nil {
		return err
	}

	summary := grading.GradeAttempt(quiz.Questions, answers)
	if err := s.Repo.CompleteGrading(attempt.ID, answers, summary.EarnedPoints, summary.TotalPoints, summary.PercentageScore, now); err != nil {
		return err
	}

	attempt.Status = model.AttemptCompleted
	attempt.EarnedPoints = summary.EarnedPoints
	attempt.TotalPoints = summary.TotalPoints
	attempt.PercentageScore = summary.PercentageScore
	attempt.GradedAt = &now

	if summary.PendingManual > 0 {
		logger.Log.Info("Attempt has answers pending manual grading",
			zap.String("attemptId", attempt.ID),
			zap.Int("pendingManual", summary.PendingManual))
	}
	return nil
}

func (s *AttemptService) MarkExpired(ctx context.Context, attemptID string) error {
	return s.Repo.MarkExpired(attemptID)
}

// ---- 结果与成绩 ----

// QuestionResult 结果页的单题明细
type QuestionResult struct {
	QuestionID      string             `json:"questionId"`
	QuestionText    string             `json:"questionText"`
	QuestionType    model.QuestionType `json:"questionType"`
	Points          float64            `json:"points"`
	AnswerText      string             `json:"answerText,omitempty"`
	SelectedOptions []string           `json:"selectedOptions,omitempty"`
	NumericalAnswer *float64           `json:"numericalAnswer,omitempty"`
	FileUploadURL   string             `json:"fileUploadUrl,omitempty"`
	IsGraded        bool               `json:"isGraded"`
	IsCorrect       *bool              `json:"isCorrect,omitempty"`
	CorrectOptions  []string           `json:"correctOptions,omitempty"`
	AcceptedAnswers []string           `json:"acceptedAnswers,omitempty"`
	Explanation     string             `json:"explanation,omitempty"`
}

// AttemptResult 一次尝试的结果视图
type AttemptResult struct {
	AttemptID        string              `json:"attemptId"`
	QuizID           string              `json:"quizId"`
	AttemptNumber    int                 `json:"attemptNumber"`
	Status           model.AttemptStatus `json:"status"`
	EarnedPoints     float64             `json:"earnedPoints"`
	TotalPoints      float64             `json:"totalPoints"`
	PercentageScore  *float64            `json:"percentageScore,omitempty"`
	LetterGrade      string              `json:"letterGrade,omitempty"`
	Passed           *bool               `json:"passed,omitempty"`
	IsLateSubmission bool                `json:"isLateSubmission"`
	TimeSpentMinutes int                 `json:"timeSpentMinutes"`
	SubmittedAt      *time.Time          `json:"submittedAt,omitempty"`
	PendingManual    int                 `json:"pendingManual"`
	Questions        []QuestionResult    `json:"questions,omitempty"`
}

// GetResult 查看一次尝试的结果
// 学生视角受试卷的结果可见性设置约束；教师不受限
func (s *AttemptService) GetResult(userID uint, role model.UserRole, attemptID string) (*AttemptResult, error) {
	attempt, err := s.Repo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}

	isOwner := attempt.UserID == userID
	isStaff := role == model.Teacher || role == model.Admin
	if !isOwner && !isStaff {
		return nil, util.ErrPermissionDenied
	}

	if attempt.Status == model.AttemptInProgress {
		return nil, util.ErrResultNotAvailable
	}

	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}

	if isOwner && !isStaff && !quiz.ShowResultsImmediately {
		return nil, util.ErrResultNotAvailable
	}

	result := &AttemptResult{
		AttemptID:        attempt.ID,
		QuizID:           attempt.QuizID,
		AttemptNumber:    attempt.AttemptNumber,
		Status:           attempt.Status,
		EarnedPoints:     attempt.EarnedPoints,
		TotalPoints:      attempt.TotalPoints,
		PercentageScore:  attempt.PercentageScore,
		IsLateSubmission: attempt.IsLateSubmission,
		TimeSpentMinutes: attempt.TimeSpentMinutes,
		SubmittedAt:      attempt.SubmittedAt,
	}
	if attempt.PercentageScore != nil {
		result.LetterGrade = grading.LetterGrade(*attempt.PercentageScore)
		if quiz.PassingScore != nil && quiz.QuizType != model.QuizTypeSurvey {
			passed := *attempt.PercentageScore >= *quiz.PassingScore
			result.Passed = &passed
		}
	}

	// 学生关闭回顾时只给聚合成绩，不给逐题明细
	includeDetail := isStaff || quiz.AllowReview
	if !includeDetail {
		return result, nil
	}

	answers, err := s.Repo.ListAnswers(attemptID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]*model.QuestionAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	revealAnswers := isStaff || quiz.ShowCorrectAnswers
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		qr := QuestionResult{
			QuestionID:   q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Points:       q.Points,
		}
		if a, ok := byQuestion[q.ID]; ok {
			qr.AnswerText = a.AnswerText
			qr.SelectedOptions = a.SelectedOptionIDs()
			qr.NumericalAnswer = a.NumericalAnswer
			qr.FileUploadURL = a.FileUploadURL
			qr.IsGraded = a.IsGraded
			qr.IsCorrect = a.IsCorrect
			if !a.IsGraded {
				result.PendingManual++
			}
		}
		if revealAnswers {
			qr.CorrectOptions = q.CorrectOptionIDs()
			qr.AcceptedAnswers = q.AcceptedAnswers()
			qr.Explanation = q.Explanation
		}
		result.Questions = append(result.Questions, qr)
	}

	return result, nil
}

// GetQuizGrade 按试卷评分策略合成的最终成绩
func (s *AttemptService) GetQuizGrade(userID uint, quizID string) (*grading.RecordedGrade, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, util.ErrQuizNotFound
	}

	attempts, err := s.Repo.ListAttempts(quizID, userID)
	if err != nil {
		return nil, err
	}

	grade := grading.GradeOfRecord(quiz, attempts)
	if grade == nil {
		return nil, util.ErrResultNotAvailable
	}
	return grade, nil
}

// ListAttempts 某用户在某试卷下的全部尝试
func (s *AttemptService) ListAttempts(userID uint, quizID string) ([]model.QuizAttempt, error) {
	return s.Repo.ListAttempts(quizID, userID)
}

// ListQuizAttempts 教师端：试卷下全部尝试（分页）
func (s *AttemptService) ListQuizAttempts(quizID string, page, limit int) ([]model.QuizAttempt, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.Repo.ListQuizAttempts(quizID, page, limit)
}

// SweepAbandoned 清扫长时间无会话的进行中尝试，转入 ABANDONED
func (s *AttemptService) SweepAbandoned(olderThan time.Duration) {
	stale, err := s.Repo.ListStaleInProgress(time.Now().Add(-olderThan))
	if err != nil {
		logger.Log.Error("Abandoned sweep query failed", zap.Error(err))
		return
	}

	swept := 0
	for i := range stale {
		// 仍有活动会话的尝试由其自身计时器收尾
		if s.Sessions.Has(stale[i].ID) {
			continue
		}
		if err := s.Repo.MarkAbandoned(stale[i].ID); err != nil {
			logger.Log.Error("Failed to mark attempt abandoned",
				zap.String("attemptId", stale[i].ID),
				zap.Error(err))
			continue
		}
		swept++
	}

	if swept > 0 {
		logger.Log.Info("Abandoned attempts swept", zap.Int("count", swept))
	}
}
