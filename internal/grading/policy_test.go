package grading

import (
	"edulearn_backend/internal/model"
	"testing"
	"time"
)

func completedAttempt(id string, number int, pct float64, submittedAt time.Time) model.QuizAttempt {
	a := model.QuizAttempt{
		AttemptNumber:   number,
		Status:          model.AttemptCompleted,
		PercentageScore: &pct,
		SubmittedAt:     &submittedAt,
	}
	a.ID = id
	return a
}

// 三次完成的尝试 [60, 90, 75]，按提交时间顺序
func policyAttempts() []model.QuizAttempt {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.QuizAttempt{
		completedAttempt("a1", 1, 60, base),
		completedAttempt("a2", 2, 90, base.Add(time.Hour)),
		completedAttempt("a3", 3, 75, base.Add(2*time.Hour)),
	}
}

func TestGradeOfRecordPolicies(t *testing.T) {
	tests := []struct {
		policy      model.ScoringPolicy
		wantScore   float64
		wantAttempt string
	}{
		{model.PolicyHighestScore, 90, "a2"},
		{model.PolicyLatestScore, 75, "a3"},
		{model.PolicyFirstScore, 60, "a1"},
		{model.PolicyAverageScore, 75, ""}, // 合成值，不对应具体尝试
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			quiz := &model.Quiz{ScoringPolicy: tt.policy}
			grade := GradeOfRecord(quiz, policyAttempts())
			if grade == nil {
				t.Fatal("expected a grade")
			}
			if grade.PercentageScore != tt.wantScore {
				t.Errorf("score = %v, want %v", grade.PercentageScore, tt.wantScore)
			}
			if grade.AttemptID != tt.wantAttempt {
				t.Errorf("attemptID = %q, want %q", grade.AttemptID, tt.wantAttempt)
			}
			if grade.AttemptsUsed != 3 {
				t.Errorf("attemptsUsed = %d, want 3", grade.AttemptsUsed)
			}
		})
	}
}

func TestGradeOfRecordIgnoresIncompleteAttempts(t *testing.T) {
	attempts := policyAttempts()

	inProgress := model.QuizAttempt{AttemptNumber: 4, Status: model.AttemptInProgress}
	inProgress.ID = "a4"
	expired := model.QuizAttempt{AttemptNumber: 5, Status: model.AttemptExpired}
	expired.ID = "a5"
	attempts = append(attempts, inProgress, expired)

	quiz := &model.Quiz{ScoringPolicy: model.PolicyHighestScore}
	grade := GradeOfRecord(quiz, attempts)
	if grade == nil {
		t.Fatal("expected a grade")
	}
	if grade.PercentageScore != 90 {
		t.Errorf("score = %v, want 90", grade.PercentageScore)
	}
	// AttemptsUsed 统计全部尝试，包括未完成的
	if grade.AttemptsUsed != 5 {
		t.Errorf("attemptsUsed = %d, want 5", grade.AttemptsUsed)
	}
}

// 完成后被标记复查的尝试保留成绩，复查落定前仍参与合成
func TestGradeOfRecordKeepsScoredFlaggedAttempts(t *testing.T) {
	attempts := policyAttempts()
	attempts[1].Status = model.AttemptFlagged // a2, 90 分

	quiz := &model.Quiz{ScoringPolicy: model.PolicyHighestScore}
	grade := GradeOfRecord(quiz, attempts)
	if grade == nil {
		t.Fatal("expected a grade")
	}
	if grade.PercentageScore != 90 || grade.AttemptID != "a2" {
		t.Errorf("grade = %v/%q, want 90/a2 (flagged attempt keeps its score)", grade.PercentageScore, grade.AttemptID)
	}

	// 未计分就被标记的尝试不参与
	unscored := model.QuizAttempt{AttemptNumber: 4, Status: model.AttemptFlagged}
	unscored.ID = "a4"
	grade = GradeOfRecord(quiz, append(attempts, unscored))
	if grade.PercentageScore != 90 {
		t.Errorf("score = %v, want 90 with an unscored flagged attempt ignored", grade.PercentageScore)
	}
}

func TestGradeOfRecordNoCompletedAttempts(t *testing.T) {
	inProgress := model.QuizAttempt{AttemptNumber: 1, Status: model.AttemptInProgress}
	inProgress.ID = "a1"

	quiz := &model.Quiz{ScoringPolicy: model.PolicyHighestScore}
	if grade := GradeOfRecord(quiz, []model.QuizAttempt{inProgress}); grade != nil {
		t.Errorf("expected nil grade, got %+v", grade)
	}
}

func TestGradeOfRecordHighestTieTakesEarlierSubmission(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	attempts := []model.QuizAttempt{
		completedAttempt("a1", 1, 85, base),
		completedAttempt("a2", 2, 85, base.Add(time.Hour)),
	}

	quiz := &model.Quiz{ScoringPolicy: model.PolicyHighestScore}
	grade := GradeOfRecord(quiz, attempts)
	if grade.AttemptID != "a1" {
		t.Errorf("attemptID = %q, want a1 (earlier submission wins ties)", grade.AttemptID)
	}
}

func TestGradeOfRecordPassing(t *testing.T) {
	passing := 70.0

	t.Run("above passing score", func(t *testing.T) {
		quiz := &model.Quiz{ScoringPolicy: model.PolicyHighestScore, PassingScore: &passing}
		grade := GradeOfRecord(quiz, policyAttempts())
		if grade.Passed == nil || !*grade.Passed {
			t.Error("expected passed=true")
		}
	})

	t.Run("below passing score", func(t *testing.T) {
		base := time.Now()
		quiz := &model.Quiz{ScoringPolicy: model.PolicyHighestScore, PassingScore: &passing}
		grade := GradeOfRecord(quiz, []model.QuizAttempt{completedAttempt("a1", 1, 65, base)})
		if grade.Passed == nil || *grade.Passed {
			t.Error("expected passed=false")
		}
	})

	t.Run("no passing score configured", func(t *testing.T) {
		quiz := &model.Quiz{ScoringPolicy: model.PolicyHighestScore}
		grade := GradeOfRecord(quiz, policyAttempts())
		if grade.Passed != nil {
			t.Error("expected passed=nil without a passing score")
		}
	})

	t.Run("survey has no pass concept", func(t *testing.T) {
		quiz := &model.Quiz{ScoringPolicy: model.PolicyHighestScore, PassingScore: &passing, QuizType: model.QuizTypeSurvey}
		grade := GradeOfRecord(quiz, policyAttempts())
		if grade.Passed != nil {
			t.Error("expected passed=nil for survey quizzes")
		}
	})
}

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A+"}, {97, "A+"}, {95, "A"}, {90, "A-"},
		{88, "B+"}, {85, "B"}, {80, "B-"},
		{78, "C+"}, {75, "C"}, {70, "C-"},
		{68, "D+"}, {65, "D"}, {60, "D-"},
		{59, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := LetterGrade(tt.pct); got != tt.want {
			t.Errorf("LetterGrade(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}
