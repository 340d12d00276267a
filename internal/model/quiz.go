package model

import "time"

type QuizType string

const (
	QuizTypePractice QuizType = "PRACTICE"
	QuizTypeGraded   QuizType = "GRADED"
	QuizTypeSurvey   QuizType = "SURVEY"
	QuizTypeExam     QuizType = "EXAM"
)

type ScoringPolicy string

const (
	PolicyHighestScore ScoringPolicy = "HIGHEST_SCORE"
	PolicyLatestScore  ScoringPolicy = "LATEST_SCORE"
	PolicyAverageScore ScoringPolicy = "AVERAGE_SCORE"
	PolicyFirstScore   ScoringPolicy = "FIRST_SCORE"
)

// swagger:model Quiz
type Quiz struct {
	UUIDBase

	Title        string `gorm:"size:255;not null" json:"title"`
	Description  string `gorm:"type:text" json:"description"`
	Instructions string `gorm:"type:text" json:"instructions"`
	CourseID     string `gorm:"index;size:36" json:"courseId"` // 课程由外部服务管理，仅存引用
	CreatedBy    uint   `gorm:"index;type:bigint unsigned" json:"createdBy"`

	TimeLimitMinutes *int     `json:"timeLimitMinutes,omitempty"` // 为空表示不限时
	MaxAttempts      int      `gorm:"default:1" json:"maxAttempts"`
	PassingScore     *float64 `json:"passingScore,omitempty"` // 百分比；为空表示无及格线

	QuizType      QuizType      `gorm:"size:20;default:'GRADED'" json:"quizType"`
	ScoringPolicy ScoringPolicy `gorm:"size:20;default:'HIGHEST_SCORE'" json:"scoringPolicy"`

	IsPublished            bool `gorm:"default:false" json:"isPublished"`
	IsRandomized           bool `gorm:"default:false" json:"isRandomized"`
	ShowResultsImmediately bool `gorm:"default:true" json:"showResultsImmediately"`
	ShowCorrectAnswers     bool `gorm:"default:false" json:"showCorrectAnswers"`
	AllowReview            bool `gorm:"default:true" json:"allowReview"`

	AvailableFrom  *time.Time `json:"availableFrom,omitempty"`
	AvailableUntil *time.Time `json:"availableUntil,omitempty"`

	Questions []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// TimeLimit 返回限时时长，0 表示不限时
func (q *Quiz) TimeLimit() time.Duration {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return 0
	}
	return time.Duration(*q.TimeLimitMinutes) * time.Minute
}

// AvailableAt 判断给定时间是否处于开放窗口内
func (q *Quiz) AvailableAt(t time.Time) bool {
	if q.AvailableFrom != nil && t.Before(*q.AvailableFrom) {
		return false
	}
	if q.AvailableUntil != nil && t.After(*q.AvailableUntil) {
		return false
	}
	return true
}

// TotalPoints 全部题目分值之和
func (q *Quiz) TotalPoints() float64 {
	var total float64
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}
