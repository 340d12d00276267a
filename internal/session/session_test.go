package session

import (
	"context"
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/util"
	"errors"
	"testing"
	"time"
)

func testQuiz(timeLimitMinutes int) *model.Quiz {
	quiz := &model.Quiz{
		Title:     "unit conversion",
		Questions: testQuestions("q1", "q2"),
	}
	quiz.ID = "quiz-1"
	if timeLimitMinutes > 0 {
		quiz.TimeLimitMinutes = &timeLimitMinutes
	}
	return quiz
}

func testAttempt(startedAt time.Time) *model.QuizAttempt {
	attempt := &model.QuizAttempt{
		QuizID:        "quiz-1",
		UserID:        7,
		AttemptNumber: 1,
		Status:        model.AttemptInProgress,
		StartedAt:     startedAt,
	}
	attempt.ID = "att-1"
	return attempt
}

func testSessionConfig() Config {
	return Config{
		AutosaveInterval: 30 * time.Second,
		TimerTick:        time.Second,
		TimeWarning:      time.Minute,
		SubmitMaxRetries: 1,
		SubmitBackoff:    0,
	}
}

func TestSessionStateTimedQuiz(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(4 * time.Minute)

	s := New(testQuiz(10), testAttempt(start), nil, &fakeBoundary{}, testSessionConfig(),
		func() time.Time { return now })

	s.UpsertAnswer("q1", AnswerPatch{AnswerText: strPtr("x")})

	st := s.State()
	if st.RemainingSeconds == nil || *st.RemainingSeconds != 360 {
		t.Errorf("RemainingSeconds = %v, want 360", st.RemainingSeconds)
	}
	if st.Deadline == nil || !st.Deadline.Equal(start.Add(10*time.Minute)) {
		t.Errorf("Deadline = %v, want start+10m", st.Deadline)
	}
	if st.AnsweredCount != 1 || st.QuestionCount != 2 {
		t.Errorf("progress = %d/%d, want 1/2", st.AnsweredCount, st.QuestionCount)
	}
	if st.Expired || st.Submitted {
		t.Errorf("state = %+v, want live session", st)
	}
}

func TestSessionStateUntimedQuiz(t *testing.T) {
	start := time.Now()
	s := New(testQuiz(0), testAttempt(start), nil, &fakeBoundary{}, testSessionConfig(), nil)

	st := s.State()
	if st.RemainingSeconds != nil || st.Deadline != nil {
		t.Errorf("untimed quiz should have no countdown: %+v", st)
	}
}

func TestSessionRejectsEditsAfterSubmit(t *testing.T) {
	start := time.Now()
	s := New(testQuiz(0), testAttempt(start), nil, &fakeBoundary{}, testSessionConfig(), nil)

	if _, err := s.Submit(context.Background(), TriggerManual); err != nil {
		t.Fatal(err)
	}

	err := s.UpsertAnswer("q1", AnswerPatch{AnswerText: strPtr("too late")})
	if !errors.Is(err, util.ErrAttemptNotInProgress) {
		t.Errorf("err = %v, want ErrAttemptNotInProgress", err)
	}

	st := s.State()
	if !st.Submitted {
		t.Error("state should report submitted")
	}
}

func TestSessionSubmitRemovesFromRegistry(t *testing.T) {
	start := time.Now()
	s := New(testQuiz(0), testAttempt(start), nil, &fakeBoundary{}, testSessionConfig(), nil)

	removed := ""
	s.onRemove = func(attemptID string) { removed = attemptID }

	if _, err := s.Submit(context.Background(), TriggerManual); err != nil {
		t.Fatal(err)
	}
	if removed != "att-1" {
		t.Errorf("removed = %q, want att-1", removed)
	}
}

func TestSessionSeedsPersistedAnswers(t *testing.T) {
	start := time.Now()
	persisted := []model.QuestionAnswer{{QuestionID: "q1", AnswerText: "from db"}}

	s := New(testQuiz(0), testAttempt(start), persisted, &fakeBoundary{}, testSessionConfig(), nil)

	if s.Store.Dirty() {
		t.Error("restored answers must not be dirty")
	}
	if st := s.State(); st.AnsweredCount != 1 {
		t.Errorf("AnsweredCount = %d, want 1 from persisted answer", st.AnsweredCount)
	}
}

func TestManagerReusesLiveSession(t *testing.T) {
	mgr := NewManager(&fakeBoundary{}, testSessionConfig())
	defer mgr.CloseAll()

	quiz := testQuiz(0)
	attempt := testAttempt(time.Now())

	first := mgr.Start(quiz, attempt, nil)
	second := mgr.Start(quiz, attempt, nil)
	if first != second {
		t.Error("starting the same attempt twice must reuse the live session")
	}
	if !mgr.Has("att-1") {
		t.Error("manager should report the session as live")
	}

	mgr.Remove("att-1")
	if mgr.Has("att-1") {
		t.Error("removed session still reported live")
	}
}
