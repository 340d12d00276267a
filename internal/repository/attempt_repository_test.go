package repository

import (
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/util"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// 内存库绑定单连接，连接池换连接会丢库
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Quiz{}, &model.Question{}, &model.QuestionOption{},
		&model.QuizAttempt{}, &model.QuestionAnswer{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuiz(t *testing.T, db *gorm.DB, maxAttempts int) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		Title:       "midterm",
		CourseID:    "course-1",
		MaxAttempts: maxAttempts,
		IsPublished: true,
	}
	if err := db.Create(quiz).Error; err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	return quiz
}

func TestCreateAttemptAssignsSequentialNumbers(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	quiz := seedQuiz(t, repo.DB, 3)
	now := time.Now()

	first, err := repo.CreateAttempt(quiz, 7, now)
	if err != nil {
		t.Fatal(err)
	}
	if first.AttemptNumber != 1 {
		t.Errorf("first attempt number = %d, want 1", first.AttemptNumber)
	}

	if _, _, err := repo.SubmitAttempt(first.ID, nil, nil, now); err != nil {
		t.Fatal(err)
	}

	second, err := repo.CreateAttempt(quiz, 7, now)
	if err != nil {
		t.Fatal(err)
	}
	if second.AttemptNumber != 2 {
		t.Errorf("second attempt number = %d, want 2", second.AttemptNumber)
	}
	if second.ID == first.ID {
		t.Error("a new attempt must not reuse the submitted attempt's id")
	}
}

// 同一用户同一试卷至多一个进行中的尝试，重复开卷复用既有会话
func TestCreateAttemptReusesInProgress(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	quiz := seedQuiz(t, repo.DB, 3)
	now := time.Now()

	first, err := repo.CreateAttempt(quiz, 7, now)
	if err != nil {
		t.Fatal(err)
	}
	second, err := repo.CreateAttempt(quiz, 7, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("got a new attempt %q, want the in-progress one %q reused", second.ID, first.ID)
	}

	var count int64
	if err := repo.DB.Model(&model.QuizAttempt{}).
		Where("quiz_id = ? AND user_id = ? AND status = ?", quiz.ID, 7, model.AttemptInProgress).
		Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("in-progress attempts = %d, want exactly 1", count)
	}
}

func TestCreateAttemptEnforcesMaxAttempts(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	quiz := seedQuiz(t, repo.DB, 2)
	now := time.Now()

	for i := 0; i < 2; i++ {
		attempt, err := repo.CreateAttempt(quiz, 7, now)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if _, _, err := repo.SubmitAttempt(attempt.ID, nil, nil, now); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := repo.CreateAttempt(quiz, 7, now); !errors.Is(err, util.ErrAttemptLimitExceeded) {
		t.Errorf("err = %v, want ErrAttemptLimitExceeded", err)
	}

	// 其他用户不受影响
	if _, err := repo.CreateAttempt(quiz, 8, now); err != nil {
		t.Errorf("another user's first attempt failed: %v", err)
	}
}

// 过期的尝试同样占用次数预算
func TestCreateAttemptCountsExpiredAgainstBudget(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	quiz := seedQuiz(t, repo.DB, 1)
	now := time.Now()

	attempt, err := repo.CreateAttempt(quiz, 7, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkExpired(attempt.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.CreateAttempt(quiz, 7, now); !errors.Is(err, util.ErrAttemptLimitExceeded) {
		t.Errorf("err = %v, want ErrAttemptLimitExceeded", err)
	}
}

func TestSubmitAttemptIdempotent(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))
	quiz := seedQuiz(t, repo.DB, 1)
	now := time.Now()

	attempt, err := repo.CreateAttempt(quiz, 7, now)
	if err != nil {
		t.Fatal(err)
	}

	submitted, applied, err := repo.SubmitAttempt(attempt.ID, nil, nil, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("first submit should apply the transition")
	}
	if submitted.Status != model.AttemptSubmitted {
		t.Errorf("status = %s, want SUBMITTED", submitted.Status)
	}

	again, applied, err := repo.SubmitAttempt(attempt.ID, nil, nil, now.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Error("repeat submit must be a no-op")
	}
	if again.SubmittedAt == nil || !again.SubmittedAt.Equal(*submitted.SubmittedAt) {
		t.Errorf("submittedAt = %v, want the original %v", again.SubmittedAt, submitted.SubmittedAt)
	}
}
