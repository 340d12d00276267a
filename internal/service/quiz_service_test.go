package service

import (
	"edulearn_backend/internal/model"
	"testing"
)

func optionReqs(correct ...bool) []QuestionOptionReq {
	opts := make([]QuestionOptionReq, 0, len(correct))
	for i, c := range correct {
		opts = append(opts, QuestionOptionReq{OptionText: "option", IsCorrect: c, OrderIndex: i})
	}
	return opts
}

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name    string
		req     QuestionReq
		wantErr bool
	}{
		{
			"valid single choice",
			QuestionReq{QuestionType: model.MultipleChoice, Points: 5, Options: optionReqs(false, true, false)},
			false,
		},
		{
			"single choice with two correct options",
			QuestionReq{QuestionType: model.MultipleChoice, Points: 5, Options: optionReqs(true, true)},
			true,
		},
		{
			"single choice with no correct option",
			QuestionReq{QuestionType: model.MultipleChoice, Points: 5, Options: optionReqs(false, false)},
			true,
		},
		{
			"choice with a single option",
			QuestionReq{QuestionType: model.TrueFalse, Points: 1, Options: optionReqs(true)},
			true,
		},
		{
			"valid multi select",
			QuestionReq{QuestionType: model.MultipleSelect, Points: 4, Options: optionReqs(true, false, true)},
			false,
		},
		{
			"multi select with no correct option",
			QuestionReq{QuestionType: model.MultipleSelect, Points: 4, Options: optionReqs(false, false)},
			true,
		},
		{
			"zero points",
			QuestionReq{QuestionType: model.MultipleChoice, Points: 0, Options: optionReqs(true, false)},
			true,
		},
		{
			"short answer without accepted answers",
			QuestionReq{QuestionType: model.ShortAnswer, Points: 2},
			true,
		},
		{
			"short answer with accepted answers",
			QuestionReq{QuestionType: model.ShortAnswer, Points: 2, CorrectAnswers: []string{"paris"}},
			false,
		},
		{
			"numerical with non-numeric accepted value",
			QuestionReq{QuestionType: model.Numerical, Points: 3, CorrectAnswers: []string{"abc"}},
			true,
		},
		{
			"numerical with numeric accepted value",
			QuestionReq{QuestionType: model.Numerical, Points: 3, CorrectAnswers: []string{"3.14"}},
			false,
		},
		{
			"essay needs no answer key",
			QuestionReq{QuestionType: model.Essay, Points: 10},
			false,
		},
		{
			"unknown question type",
			QuestionReq{QuestionType: "GUESSWORK", Points: 1},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateQuestion(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildQuestionsSerializesAnswerKey(t *testing.T) {
	reqs := []QuestionReq{{
		QuestionText:   "capital of France",
		QuestionType:   model.ShortAnswer,
		Points:         2,
		CorrectAnswers: []string{"Paris", "paris"},
	}}

	questions, err := buildQuestions(reqs)
	if err != nil {
		t.Fatal(err)
	}
	got := questions[0].AcceptedAnswers()
	if len(got) != 2 || got[0] != "Paris" {
		t.Errorf("AcceptedAnswers = %v, want round-trip of request values", got)
	}
}

// 同一次尝试的乱序结果必须稳定，不同尝试通常不同
func TestShuffleDeterministicPerAttempt(t *testing.T) {
	build := func() []StudentQuestionView {
		views := make([]StudentQuestionView, 10)
		for i := range views {
			views[i].ID = string(rune('a' + i))
		}
		return views
	}

	first := build()
	shuffleQuestions(first, "attempt-123")
	second := build()
	shuffleQuestions(second, "attempt-123")

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("same attempt produced different orders at %d: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}

	other := build()
	shuffleQuestions(other, "attempt-456")
	same := true
	for i := range first {
		if first[i].ID != other[i].ID {
			same = false
			break
		}
	}
	if same {
		t.Error("different attempts produced identical orders; seed is not attempt-specific")
	}
}
