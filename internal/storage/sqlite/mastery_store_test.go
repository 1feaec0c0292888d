package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

func testRecord(studentID, concept string, score float64) *mastery.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &mastery.Record{
		ID:              uuid.New(),
		StudentID:       studentID,
		CourseID:        "course-1",
		Concept:         concept,
		MasteryScore:    score,
		Interactions:    3,
		CorrectAnswers:  2,
		TotalQuestions:  3,
		LastInteraction: now,
		UpdatedAt:       now,
	}
}

func TestMasteryStoreRoundTrip(t *testing.T) {
	store := NewMasteryStore(openTestDB(t))
	ctx := context.Background()

	rec := testRecord("s1", "binary search tree", 71.5)
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.Get(ctx, "s1", "course-1", "binary search tree")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.MasteryScore != 71.5 {
		t.Errorf("MasteryScore = %v; want 71.5", got.MasteryScore)
	}
	if got.Interactions != 3 || got.CorrectAnswers != 2 || got.TotalQuestions != 3 {
		t.Errorf("counters = %d/%d/%d; want 3/2/3", got.Interactions, got.CorrectAnswers, got.TotalQuestions)
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %v; want %v", got.ID, rec.ID)
	}
}

func TestMasteryStoreGetMissing(t *testing.T) {
	store := NewMasteryStore(openTestDB(t))

	_, err := store.Get(context.Background(), "s1", "course-1", "nothing")
	if !errors.Is(err, mastery.ErrNotFound) {
		t.Errorf("Get() error = %v; want ErrNotFound", err)
	}
}

func TestMasteryStoreUpsertReplaces(t *testing.T) {
	store := NewMasteryStore(openTestDB(t))
	ctx := context.Background()

	rec := testRecord("s1", "recursion", 15)
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.MasteryScore = 30
	rec.Interactions = 10
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "s1", "course-1", "recursion")
	if err != nil {
		t.Fatal(err)
	}
	if got.MasteryScore != 30 || got.Interactions != 10 {
		t.Errorf("after replace: score = %v, interactions = %d; want 30, 10", got.MasteryScore, got.Interactions)
	}

	// Still one row for the key.
	records, _ := store.ListByStudent(ctx, "course-1", "s1")
	if len(records) != 1 {
		t.Errorf("len(records) = %d; want 1", len(records))
	}
}

func TestMasteryStoreListByCourse(t *testing.T) {
	store := NewMasteryStore(openTestDB(t))
	ctx := context.Background()

	store.Upsert(ctx, testRecord("s1", "recursion", 20))
	store.Upsert(ctx, testRecord("s2", "recursion", 40))
	store.Upsert(ctx, testRecord("s1", "hash table", 60))

	records, err := store.ListByCourse(ctx, "course-1", 0)
	if err != nil {
		t.Fatalf("ListByCourse() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("len = %d; want 3", len(records))
	}

	limited, _ := store.ListByCourse(ctx, "course-1", 2)
	if len(limited) != 2 {
		t.Errorf("limited len = %d; want 2", len(limited))
	}
}

func TestMasteryStoreListBelow(t *testing.T) {
	store := NewMasteryStore(openTestDB(t))
	ctx := context.Background()

	store.Upsert(ctx, testRecord("s1", "recursion", 55))
	store.Upsert(ctx, testRecord("s1", "hash table", 25))
	store.Upsert(ctx, testRecord("s1", "binary search tree", 85))

	weak, err := store.ListBelow(ctx, "course-1", "s1", 60)
	if err != nil {
		t.Fatalf("ListBelow() error = %v", err)
	}
	if len(weak) != 2 {
		t.Fatalf("len = %d; want 2", len(weak))
	}
	// Weakest first.
	if weak[0].Concept != "hash table" || weak[1].Concept != "recursion" {
		t.Errorf("order = %q, %q; want hash table, recursion", weak[0].Concept, weak[1].Concept)
	}
}

func TestMasteryStoreDelete(t *testing.T) {
	store := NewMasteryStore(openTestDB(t))
	ctx := context.Background()

	store.Upsert(ctx, testRecord("s1", "recursion", 20))
	if err := store.Delete(ctx, "s1", "course-1", "recursion"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "s1", "course-1", "recursion"); !errors.Is(err, mastery.ErrNotFound) {
		t.Errorf("Get() after delete error = %v; want ErrNotFound", err)
	}

	// Deleting a missing record is not an error.
	if err := store.Delete(ctx, "s1", "course-1", "recursion"); err != nil {
		t.Errorf("second Delete() error = %v; want nil", err)
	}
}

func TestMasteryStoreWithService(t *testing.T) {
	// End-to-end with the real scoring path.
	store := NewMasteryStore(openTestDB(t))
	svc := mastery.NewService(store, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.Update(ctx, "s1", "course-1", "Gradient Descent", mastery.InteractionQuestion, 1.0); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := store.Get(ctx, "s1", "course-1", "gradient descent")
	if err != nil {
		t.Fatal(err)
	}
	if rec.MasteryScore != 15 {
		t.Errorf("MasteryScore = %v; want 15", rec.MasteryScore)
	}
}
