package model

import "encoding/json"

// QuestionAnswer 一次尝试中每题的作答记录
// 主观题（ESSAY/FILE_UPLOAD/FILL_IN_BLANK）在人工评分前 IsGraded 保持 false
// swagger:model QuestionAnswer
type QuestionAnswer struct {
	UUIDBase

	AttemptID  string `gorm:"uniqueIndex:idx_answer_attempt_question;size:36" json:"attemptId"`
	QuestionID string `gorm:"uniqueIndex:idx_answer_attempt_question;size:36" json:"questionId"`

	AnswerText      string   `gorm:"type:text" json:"answerText,omitempty"`
	SelectedOptions string   `gorm:"type:json" json:"-"` // 选项ID（JSON 数组）
	NumericalAnswer *float64 `json:"numericalAnswer,omitempty"`
	FileUploadURL   string   `gorm:"size:512" json:"fileUploadUrl,omitempty"`

	TimeSpentSeconds int   `json:"timeSpentSeconds"`
	IsGraded         bool  `gorm:"default:false" json:"isGraded"`
	IsCorrect        *bool `json:"isCorrect,omitempty"`
}

func (QuestionAnswer) TableName() string {
	return "question_answers"
}

// SelectedOptionIDs 解析已选选项ID
func (a *QuestionAnswer) SelectedOptionIDs() []string {
	if a.SelectedOptions == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(a.SelectedOptions), &ids); err != nil {
		return nil
	}
	return ids
}

// SetSelectedOptionIDs 序列化已选选项ID
func (a *QuestionAnswer) SetSelectedOptionIDs(ids []string) {
	if len(ids) == 0 {
		a.SelectedOptions = ""
		return
	}
	data, _ := json.Marshal(ids)
	a.SelectedOptions = string(data)
}

// Empty 是否未作答
func (a *QuestionAnswer) Empty() bool {
	return a.AnswerText == "" && a.SelectedOptions == "" && a.NumericalAnswer == nil && a.FileUploadURL == ""
}
