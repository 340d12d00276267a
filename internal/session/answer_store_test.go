package session

import (
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/util"
	"errors"
	"testing"
)

func testQuestions(ids ...string) []model.Question {
	questions := make([]model.Question, 0, len(ids))
	for i, id := range ids {
		q := model.Question{OrderIndex: i}
		q.ID = id
		questions = append(questions, q)
	}
	return questions
}

func strPtr(s string) *string        { return &s }
func intPtr(i int) *int              { return &i }
func idsPtr(ids ...string) *[]string { return &ids }

func TestUpsertMergesFields(t *testing.T) {
	store := NewAnswerStore(testQuestions("q1", "q2"))

	if err := store.Upsert("q1", AnswerPatch{AnswerText: strPtr("draft one")}); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert("q1", AnswerPatch{TimeSpentSeconds: intPtr(42)}); err != nil {
		t.Fatal(err)
	}

	snap := store.Snapshot()
	if snap[0].AnswerText != "draft one" {
		t.Errorf("AnswerText = %q, want merge to keep earlier field", snap[0].AnswerText)
	}
	if snap[0].TimeSpentSeconds != 42 {
		t.Errorf("TimeSpentSeconds = %d, want 42", snap[0].TimeSpentSeconds)
	}
}

func TestUpsertUnknownQuestion(t *testing.T) {
	store := NewAnswerStore(testQuestions("q1"))
	err := store.Upsert("nope", AnswerPatch{AnswerText: strPtr("x")})
	if !errors.Is(err, util.ErrQuestionNotFound) {
		t.Errorf("err = %v, want ErrQuestionNotFound", err)
	}
}

func TestSnapshotSynthesizesEmptyAnswers(t *testing.T) {
	store := NewAnswerStore(testQuestions("q1", "q2", "q3"))
	store.Upsert("q2", AnswerPatch{AnswerText: strPtr("answered")})

	snap := store.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot has %d entries, want one per question", len(snap))
	}
	for i, id := range []string{"q1", "q2", "q3"} {
		if snap[i].QuestionID != id {
			t.Errorf("snapshot[%d].QuestionID = %q, want %q (question order)", i, snap[i].QuestionID, id)
		}
	}
	if !snap[0].Empty() || snap[1].Empty() || !snap[2].Empty() {
		t.Error("unanswered questions should be empty drafts, answered one should not")
	}
}

func TestDirtyTrackingAcrossConcurrentEdit(t *testing.T) {
	store := NewAnswerStore(testQuestions("q1"))

	store.Upsert("q1", AnswerPatch{AnswerText: strPtr("v1")})
	flushed := store.Version()

	// 冲刷在途期间的新编辑
	store.Upsert("q1", AnswerPatch{AnswerText: strPtr("v2")})

	store.MarkSaved(flushed)
	if !store.Dirty() {
		t.Error("edit made during flush must keep the store dirty")
	}

	store.MarkSaved(store.Version())
	if store.Dirty() {
		t.Error("store should be clean after saving latest version")
	}
}

func TestSeedDoesNotDirty(t *testing.T) {
	store := NewAnswerStore(testQuestions("q1", "q2"))

	a := model.QuestionAnswer{QuestionID: "q1", AnswerText: "persisted"}
	store.Seed([]model.QuestionAnswer{a})

	if store.Dirty() {
		t.Error("seeding persisted answers must not mark the store dirty")
	}
	if snap := store.Snapshot(); snap[0].AnswerText != "persisted" {
		t.Errorf("seeded answer missing from snapshot: %+v", snap[0])
	}
}

func TestFlaggingAndStatuses(t *testing.T) {
	questions := testQuestions("q1", "q2")
	questions[1].IsRequired = true
	store := NewAnswerStore(questions)

	store.Upsert("q1", AnswerPatch{SelectedOptionIDs: idsPtr("A")})
	if err := store.Flag("q2"); err != nil {
		t.Fatal(err)
	}

	statuses := store.Statuses()
	if !statuses[0].Answered || statuses[0].Flagged {
		t.Errorf("q1 status = %+v, want answered and unflagged", statuses[0])
	}
	if statuses[1].Answered || !statuses[1].Flagged || !statuses[1].Required {
		t.Errorf("q2 status = %+v, want unanswered, flagged, required", statuses[1])
	}

	store.Unflag("q2")
	if store.Statuses()[1].Flagged {
		t.Error("q2 should be unflagged")
	}

	if store.AnsweredCount() != 1 {
		t.Errorf("AnsweredCount = %d, want 1", store.AnsweredCount())
	}
}

// 清空选项算未作答
func TestClearedSelectionCountsUnanswered(t *testing.T) {
	store := NewAnswerStore(testQuestions("q1"))
	store.Upsert("q1", AnswerPatch{SelectedOptionIDs: idsPtr("A")})
	store.Upsert("q1", AnswerPatch{SelectedOptionIDs: idsPtr()})

	if store.AnsweredCount() != 0 {
		t.Errorf("AnsweredCount = %d, want 0 after clearing selection", store.AnsweredCount())
	}
}
