package repository

import (
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/util"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// lockForUpdate 行锁串行化并发事务
// SQLite 单写入者天然串行，不支持 FOR UPDATE 语法
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// CreateAttempt 开启一次新尝试
// 事务内用行锁串行化同一 (quiz, user) 的并发开卷：
// 次数达到上限拒绝，已有进行中的尝试则复用
func (r *AttemptRepository) CreateAttempt(quiz *model.Quiz, userID uint, now time.Time) (*model.QuizAttempt, error) {
	var attempt *model.QuizAttempt

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var existing []model.QuizAttempt
		if err := lockForUpdate(tx).
			Where("quiz_id = ? AND user_id = ?", quiz.ID, userID).
			Order("attempt_number asc").
			Find(&existing).Error; err != nil {
			return err
		}

		for i := range existing {
			if existing[i].Status == model.AttemptInProgress {
				attempt = &existing[i]
				return nil
			}
		}

		if len(existing) >= quiz.MaxAttempts {
			return util.ErrAttemptLimitExceeded
		}

		next := 1
		if len(existing) > 0 {
			next = existing[len(existing)-1].AttemptNumber + 1
		}

		attempt = &model.QuizAttempt{
			QuizID:        quiz.ID,
			UserID:        userID,
			AttemptNumber: next,
			Status:        model.AttemptInProgress,
			StartedAt:     now,
		}
		return tx.Create(attempt).Error
	})

	return attempt, err
}

func (r *AttemptRepository) FindByID(id string) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.First(&attempt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	return &attempt, err
}

// ListAnswers 一次尝试的全部作答
func (r *AttemptRepository) ListAnswers(attemptID string) ([]model.QuestionAnswer, error) {
	var answers []model.QuestionAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

// SaveAnswers 按题目ID逐条插入或更新，可安全重试
// 仅允许进行中的尝试写入作答
func (r *AttemptRepository) SaveAnswers(attemptID string, drafts []model.QuestionAnswer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var attempt model.QuizAttempt
		if err := lockForUpdate(tx).
			First(&attempt, "id = ?", attemptID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrAttemptNotFound
			}
			return err
		}
		if attempt.Status != model.AttemptInProgress {
			return util.ErrAttemptNotInProgress
		}
		return upsertAnswers(tx, attemptID, drafts)
	})
}

func upsertAnswers(tx *gorm.DB, attemptID string, drafts []model.QuestionAnswer) error {
	for i := range drafts {
		draft := &drafts[i]
		draft.AttemptID = attemptID

		var existing model.QuestionAnswer
		err := tx.Where("attempt_id = ? AND question_id = ?", attemptID, draft.QuestionID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(draft).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			existing.AnswerText = draft.AnswerText
			existing.SelectedOptions = draft.SelectedOptions
			existing.NumericalAnswer = draft.NumericalAnswer
			existing.FileUploadURL = draft.FileUploadURL
			existing.TimeSpentSeconds = draft.TimeSpentSeconds
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// SubmitAttempt 进行中 → 已提交 的原子转换
// 已不在进行中的尝试原样返回（applied=false），调用方按幂等空操作处理；
// 手动与定时提交竞态时先落库者赢
func (r *AttemptRepository) SubmitAttempt(attemptID string, drafts []model.QuestionAnswer, availableUntil *time.Time, now time.Time) (*model.QuizAttempt, bool, error) {
	var attempt model.QuizAttempt
	applied := false

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			First(&attempt, "id = ?", attemptID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrAttemptNotFound
			}
			return err
		}

		if attempt.Status != model.AttemptInProgress {
			// 已提交或已终止：返回既有记录，不再转换
			return nil
		}

		if err := upsertAnswers(tx, attemptID, drafts); err != nil {
			return err
		}

		attempt.Status = model.AttemptSubmitted
		attempt.SubmittedAt = &now
		attempt.TimeSpentMinutes = int(now.Sub(attempt.StartedAt).Minutes())
		attempt.IsLateSubmission = availableUntil != nil && now.After(*availableUntil)
		applied = true
		return tx.Save(&attempt).Error
	})

	return &attempt, applied, err
}

// CompleteGrading 写回评分结果并转入 COMPLETED
// 主观题未评分的聚合分值保持部分状态，不隐藏
func (r *AttemptRepository) CompleteGrading(attemptID string, answers []model.QuestionAnswer, earned, total float64, percentage *float64, now time.Time) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for i := range answers {
			if err := tx.Model(&model.QuestionAnswer{}).
				Where("attempt_id = ? AND question_id = ?", attemptID, answers[i].QuestionID).
				Updates(map[string]interface{}{
					"is_graded":  answers[i].IsGraded,
					"is_correct": answers[i].IsCorrect,
				}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.QuizAttempt{}).
			Where("id = ? AND status = ?", attemptID, model.AttemptSubmitted).
			Updates(map[string]interface{}{
				"status":           model.AttemptCompleted,
				"earned_points":    earned,
				"total_points":     total,
				"percentage_score": percentage,
				"graded_at":        now,
			}).Error
	})
}

// MarkExpired 到期且自动提交未能落库：终态 EXPIRED
func (r *AttemptRepository) MarkExpired(attemptID string) error {
	return r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Update("status", model.AttemptExpired).Error
}

// MarkAbandoned 会话结束且未提交：终态 ABANDONED（带外清扫）
func (r *AttemptRepository) MarkAbandoned(attemptID string) error {
	return r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Update("status", model.AttemptAbandoned).Error
}

// ListAttempts 某用户在某试卷下的全部尝试
func (r *AttemptRepository) ListAttempts(quizID string, userID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("attempt_number asc").
		Find(&attempts).Error
	return attempts, err
}

// ListQuizAttempts 试卷下全部尝试（教师端分页）
func (r *AttemptRepository) ListQuizAttempts(quizID string, page, limit int) ([]model.QuizAttempt, int64, error) {
	var total int64
	query := r.DB.Model(&model.QuizAttempt{}).Where("quiz_id = ?", quizID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.QuizAttempt
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}

// FindInProgress 某用户在某试卷下进行中的尝试
func (r *AttemptRepository) FindInProgress(quizID string, userID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.Where("quiz_id = ? AND user_id = ? AND status = ?", quizID, userID, model.AttemptInProgress).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &attempt, err
}

// ListStaleInProgress 开始时间早于 before 且仍在进行中的尝试（遗弃清扫）
func (r *AttemptRepository) ListStaleInProgress(before time.Time) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("status = ? AND started_at < ?", model.AttemptInProgress, before).
		Find(&attempts).Error
	return attempts, err
}
