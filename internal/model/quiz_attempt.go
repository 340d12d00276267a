package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	AttemptCompleted  AttemptStatus = "COMPLETED"
	AttemptExpired    AttemptStatus = "EXPIRED"
	AttemptAbandoned  AttemptStatus = "ABANDONED"
	AttemptFlagged    AttemptStatus = "FLAGGED"
)

// Terminal 终态不允许任何后续转换
func (s AttemptStatus) Terminal() bool {
	switch s {
	case AttemptCompleted, AttemptExpired, AttemptAbandoned, AttemptFlagged:
		return true
	}
	return false
}

// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase

	QuizID        string        `gorm:"index:idx_attempt_quiz_user;size:36" json:"quizId"`
	UserID        uint          `gorm:"index:idx_attempt_quiz_user;type:bigint unsigned" json:"userId"`
	AttemptNumber int           `gorm:"not null" json:"attemptNumber"`
	Status        AttemptStatus `gorm:"size:20;default:'IN_PROGRESS'" json:"status"`

	EarnedPoints    float64  `json:"earnedPoints"`
	TotalPoints     float64  `json:"totalPoints"`
	PercentageScore *float64 `json:"percentageScore,omitempty"` // 评分完成前为空

	TimeSpentMinutes int        `json:"timeSpentMinutes"`
	StartedAt        time.Time  `json:"startedAt"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
	GradedAt         *time.Time `json:"gradedAt,omitempty"`
	IsLateSubmission bool       `gorm:"default:false" json:"isLateSubmission"`

	Answers []QuestionAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// Deadline 根据开始时间和限时计算绝对截止时间；不限时返回零值
func (a *QuizAttempt) Deadline(timeLimit time.Duration) time.Time {
	if timeLimit <= 0 {
		return time.Time{}
	}
	return a.StartedAt.Add(timeLimit)
}
