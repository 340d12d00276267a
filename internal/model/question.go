package model

import "encoding/json"

type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	MultipleSelect QuestionType = "MULTIPLE_SELECT"
	TrueFalse      QuestionType = "TRUE_FALSE"
	ShortAnswer    QuestionType = "SHORT_ANSWER"
	Essay          QuestionType = "ESSAY"
	FillInBlank    QuestionType = "FILL_IN_BLANK"
	Numerical      QuestionType = "NUMERICAL"
	FileUpload     QuestionType = "FILE_UPLOAD"
)

// AutoGradable 该题型能否由引擎自动评分
// 填空题的匹配算法尚未确定，暂与主观题一样走人工评分
func (t QuestionType) AutoGradable() bool {
	switch t {
	case MultipleChoice, MultipleSelect, TrueFalse, ShortAnswer, Numerical:
		return true
	}
	return false
}

// IsChoice 是否为选项类题型
func (t QuestionType) IsChoice() bool {
	switch t {
	case MultipleChoice, MultipleSelect, TrueFalse:
		return true
	}
	return false
}

// swagger:model Question
type Question struct {
	UUIDBase

	QuizID       string       `gorm:"index;size:36" json:"quizId"`
	QuestionText string       `gorm:"type:text;not null" json:"questionText"`
	QuestionType QuestionType `gorm:"size:30;not null" json:"questionType"`
	Points       float64      `gorm:"not null" json:"points"`
	OrderIndex   int          `gorm:"default:0" json:"orderIndex"`
	Explanation  string       `gorm:"type:text" json:"explanation"`
	IsRequired   bool         `gorm:"default:false" json:"isRequired"`

	// 简答/数值题的可接受答案（JSON 数组）
	CorrectAnswers string `gorm:"type:json" json:"correctAnswers,omitempty"`

	Options []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// AcceptedAnswers 解析可接受答案列表
func (q *Question) AcceptedAnswers() []string {
	if q.CorrectAnswers == "" {
		return nil
	}
	var answers []string
	if err := json.Unmarshal([]byte(q.CorrectAnswers), &answers); err != nil {
		return nil
	}
	return answers
}

// SetAcceptedAnswers 序列化可接受答案列表
func (q *Question) SetAcceptedAnswers(answers []string) {
	if len(answers) == 0 {
		q.CorrectAnswers = ""
		return
	}
	data, _ := json.Marshal(answers)
	q.CorrectAnswers = string(data)
}

// CorrectOptionIDs 被标记为正确的选项ID集合
func (q *Question) CorrectOptionIDs() []string {
	var ids []string
	for _, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// swagger:model QuestionOption
type QuestionOption struct {
	UUIDBase

	QuestionID string `gorm:"index;size:36" json:"questionId"`
	OptionText string `gorm:"type:text;not null" json:"optionText"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	OrderIndex int    `gorm:"default:0" json:"orderIndex"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
