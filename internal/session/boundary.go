package session

import "context"

type SubmitTrigger string

const (
	TriggerManual SubmitTrigger = "manual"
	TriggerTimer  SubmitTrigger = "timer"
)

// AnswerDraft 会话内的单题作答草稿
type AnswerDraft struct {
	QuestionID        string   `json:"questionId"`
	AnswerText        string   `json:"answerText,omitempty"`
	SelectedOptionIDs []string `json:"selectedOptionIds,omitempty"`
	NumericalAnswer   *float64 `json:"numericalAnswer,omitempty"`
	FileUploadURL     string   `json:"fileUploadUrl,omitempty"`
	TimeSpentSeconds  int      `json:"timeSpentSeconds,omitempty"`
}

// Empty 是否未作答
func (d *AnswerDraft) Empty() bool {
	return d.AnswerText == "" && len(d.SelectedOptionIDs) == 0 && d.NumericalAnswer == nil && d.FileUploadURL == ""
}

// AnswerPatch 增量更新；nil 字段表示不修改，绝不整体替换
type AnswerPatch struct {
	AnswerText        *string   `json:"answerText,omitempty"`
	SelectedOptionIDs *[]string `json:"selectedOptionIds,omitempty"`
	NumericalAnswer   *float64  `json:"numericalAnswer,omitempty"`
	FileUploadURL     *string   `json:"fileUploadUrl,omitempty"`
	TimeSpentSeconds  *int      `json:"timeSpentSeconds,omitempty"`
}

// SubmitOutcome 持久化边界返回的提交结果
type SubmitOutcome struct {
	AttemptID        string        `json:"attemptId"`
	Status           string        `json:"status"`
	EarnedPoints     float64       `json:"earnedPoints"`
	TotalPoints      float64       `json:"totalPoints"`
	PercentageScore  *float64      `json:"percentageScore,omitempty"`
	IsLateSubmission bool          `json:"isLateSubmission"`
	Trigger          SubmitTrigger `json:"trigger"`
}

// Boundary 持久化边界
// 实现方负责幂等：SaveAnswers 按题目ID可安全重试，SubmitAttempt 对已提交的尝试返回既有结果
type Boundary interface {
	SaveAnswers(ctx context.Context, attemptID string, answers []AnswerDraft) error
	SubmitAttempt(ctx context.Context, attemptID string, answers []AnswerDraft, trigger SubmitTrigger) (*SubmitOutcome, error)
	MarkExpired(ctx context.Context, attemptID string) error
}
