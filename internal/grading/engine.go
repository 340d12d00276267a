package grading

import (
	"edulearn_backend/internal/model"
	"math"
	"strings"
)

// Outcome 单题评分结果
type Outcome struct {
	Graded  bool // 引擎能否给出结论；主观题为 false
	Correct bool
}

// Summary 一次尝试的聚合评分
// TotalPoints 只累计已评分题目的分值，主观题待人工评分后再计入
type Summary struct {
	EarnedPoints    float64
	TotalPoints     float64
	PercentageScore *float64
	PendingManual   int // 尚需人工评分的题目数
}

// GradeAnswer 按题型对单题作答评分
func GradeAnswer(q *model.Question, a *model.QuestionAnswer) Outcome {
	if !q.QuestionType.AutoGradable() {
		return Outcome{}
	}

	switch q.QuestionType {
	case model.MultipleChoice, model.TrueFalse:
		return Outcome{Graded: true, Correct: gradeSingleChoice(q, a)}
	case model.MultipleSelect:
		return Outcome{Graded: true, Correct: gradeMultiSelect(q, a)}
	case model.ShortAnswer:
		return Outcome{Graded: true, Correct: gradeShortAnswer(q, a)}
	case model.Numerical:
		return Outcome{Graded: true, Correct: gradeNumerical(q, a)}
	}
	return Outcome{}
}

// 单选/判断：唯一选中的选项必须等于唯一的正确选项
func gradeSingleChoice(q *model.Question, a *model.QuestionAnswer) bool {
	selected := a.SelectedOptionIDs()
	correct := q.CorrectOptionIDs()
	if len(selected) != 1 || len(correct) != 1 {
		return false
	}
	return selected[0] == correct[0]
}

// 多选：选中集合与正确集合完全一致，多选或漏选均不得分
func gradeMultiSelect(q *model.Question, a *model.QuestionAnswer) bool {
	selected := toSet(a.SelectedOptionIDs())
	correct := toSet(q.CorrectOptionIDs())
	if len(correct) == 0 || len(selected) != len(correct) {
		return false
	}
	for id := range selected {
		if !correct[id] {
			return false
		}
	}
	return true
}

// 简答：去首尾空格、忽略大小写，命中任一可接受答案即正确
func gradeShortAnswer(q *model.Question, a *model.QuestionAnswer) bool {
	answer := strings.ToLower(strings.TrimSpace(a.AnswerText))
	if answer == "" {
		return false
	}
	for _, accepted := range q.AcceptedAnswers() {
		if answer == strings.ToLower(strings.TrimSpace(accepted)) {
			return true
		}
	}
	return false
}

// 数值：严格相等，不做容差比较（容差属于产品决策，未定义前不引入）
func gradeNumerical(q *model.Question, a *model.QuestionAnswer) bool {
	if a.NumericalAnswer == nil {
		return false
	}
	for _, accepted := range q.AcceptedAnswers() {
		if parsed, ok := parseNumber(accepted); ok && parsed == *a.NumericalAnswer {
			return true
		}
	}
	return false
}

// GradeAttempt 对整次作答评分并聚合
// 就地更新 answers 的 IsGraded/IsCorrect；主观题保持未评分状态
func GradeAttempt(questions []model.Question, answers []model.QuestionAnswer) Summary {
	byQuestion := make(map[string]*model.Question, len(questions))
	for i := range questions {
		byQuestion[questions[i].ID] = &questions[i]
	}

	var s Summary
	for i := range answers {
		q, ok := byQuestion[answers[i].QuestionID]
		if !ok {
			continue
		}

		outcome := GradeAnswer(q, &answers[i])
		if !outcome.Graded {
			s.PendingManual++
			continue
		}

		correct := outcome.Correct
		answers[i].IsGraded = true
		answers[i].IsCorrect = &correct

		s.TotalPoints += q.Points
		if correct {
			s.EarnedPoints += q.Points
		}
	}

	if s.TotalPoints > 0 {
		pct := math.Round(s.EarnedPoints / s.TotalPoints * 100)
		s.PercentageScore = &pct
	}
	return s
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
