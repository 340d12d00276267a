package grading

import (
	"edulearn_backend/internal/model"
	"math"
	"sort"
)

// RecordedGrade 多次尝试按评分策略合成的最终成绩
// AVERAGE_SCORE 为合成值，不对应具体某次尝试，AttemptID 为空
type RecordedGrade struct {
	PercentageScore float64 `json:"percentageScore"`
	AttemptID       string  `json:"attemptId,omitempty"`
	AttemptNumber   int     `json:"attemptNumber,omitempty"`
	Passed          *bool   `json:"passed,omitempty"` // 未设置及格线或问卷类型时为空
	LetterGrade     string  `json:"letterGrade"`
	AttemptsUsed    int     `json:"attemptsUsed"` // 占用次数预算的全部尝试，与开卷时的上限检查同口径
}

// GradeOfRecord 从已计分的尝试中按策略选出最终成绩；没有可用尝试时返回 nil
// 完成后被标记复查的尝试在复查落定前保留其成绩参与合成
func GradeOfRecord(quiz *model.Quiz, attempts []model.QuizAttempt) *RecordedGrade {
	scored := make([]model.QuizAttempt, 0, len(attempts))
	for _, a := range attempts {
		if a.PercentageScore == nil {
			continue
		}
		if a.Status == model.AttemptCompleted || a.Status == model.AttemptFlagged {
			scored = append(scored, a)
		}
	}
	if len(scored) == 0 {
		return nil
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].AttemptNumber < scored[j].AttemptNumber
	})

	grade := &RecordedGrade{AttemptsUsed: len(attempts)}

	switch quiz.ScoringPolicy {
	case model.PolicyLatestScore:
		latest := scored[0]
		for _, a := range scored[1:] {
			if a.SubmittedAt != nil && (latest.SubmittedAt == nil || a.SubmittedAt.After(*latest.SubmittedAt)) {
				latest = a
			}
		}
		grade.PercentageScore = *latest.PercentageScore
		grade.AttemptID = latest.ID
		grade.AttemptNumber = latest.AttemptNumber

	case model.PolicyFirstScore:
		first := scored[0]
		for _, a := range scored {
			if a.AttemptNumber == 1 {
				first = a
				break
			}
		}
		grade.PercentageScore = *first.PercentageScore
		grade.AttemptID = first.ID
		grade.AttemptNumber = first.AttemptNumber

	case model.PolicyAverageScore:
		var sum float64
		for _, a := range scored {
			sum += *a.PercentageScore
		}
		grade.PercentageScore = math.Round(sum / float64(len(scored)))

	default: // HIGHEST_SCORE
		best := scored[0]
		for _, a := range scored[1:] {
			if *a.PercentageScore > *best.PercentageScore {
				best = a
				continue
			}
			// 同分取较早提交的一次
			if *a.PercentageScore == *best.PercentageScore &&
				a.SubmittedAt != nil && best.SubmittedAt != nil && a.SubmittedAt.Before(*best.SubmittedAt) {
				best = a
			}
		}
		grade.PercentageScore = *best.PercentageScore
		grade.AttemptID = best.ID
		grade.AttemptNumber = best.AttemptNumber
	}

	grade.LetterGrade = LetterGrade(grade.PercentageScore)

	// 问卷类型不设及格概念
	if quiz.PassingScore != nil && quiz.QuizType != model.QuizTypeSurvey {
		passed := grade.PercentageScore >= *quiz.PassingScore
		grade.Passed = &passed
	}

	return grade
}

// LetterGrade 百分比成绩对应的等级
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 97:
		return "A+"
	case percentage >= 93:
		return "A"
	case percentage >= 90:
		return "A-"
	case percentage >= 87:
		return "B+"
	case percentage >= 83:
		return "B"
	case percentage >= 80:
		return "B-"
	case percentage >= 77:
		return "C+"
	case percentage >= 73:
		return "C"
	case percentage >= 70:
		return "C-"
	case percentage >= 67:
		return "D+"
	case percentage >= 63:
		return "D"
	case percentage >= 60:
		return "D-"
	default:
		return "F"
	}
}
