package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/learning"
)

func testCard(concept string, priority int) *learning.Card {
	return &learning.Card{
		ID:             uuid.New(),
		CourseID:       "course-1",
		StudentID:      "s1",
		Concept:        concept,
		Type:           learning.CardReview,
		ContentSummary: "summary of " + concept,
		Priority:       priority,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestCardStoreRoundTrip(t *testing.T) {
	store := NewCardStore(openTestDB(t))
	ctx := context.Background()

	card := testCard("recursion", 1)
	card.Type = learning.CardQuiz
	card.QuizQuestion = &learning.QuizQuestion{
		Question:      "What is recursion?",
		Options:       []string{"a", "b", "c", "d"},
		CorrectAnswer: 0,
		Explanation:   "because",
	}

	if err := store.Insert(ctx, card); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.Get(ctx, card.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Type != learning.CardQuiz {
		t.Errorf("Type = %q; want quiz", got.Type)
	}
	if got.QuizQuestion == nil || got.QuizQuestion.Question != "What is recursion?" {
		t.Errorf("QuizQuestion = %+v; want round-tripped question", got.QuizQuestion)
	}
	if len(got.QuizQuestion.Options) != 4 {
		t.Errorf("len(Options) = %d; want 4", len(got.QuizQuestion.Options))
	}
}

func TestCardStoreGetMissing(t *testing.T) {
	store := NewCardStore(openTestDB(t))
	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, learning.ErrCardNotFound) {
		t.Errorf("Get() error = %v; want ErrCardNotFound", err)
	}
}

func TestCardStoreListActiveOrdering(t *testing.T) {
	store := NewCardStore(openTestDB(t))
	ctx := context.Background()

	store.Insert(ctx, testCard("low priority", 3))
	store.Insert(ctx, testCard("high priority", 1))
	store.Insert(ctx, testCard("medium priority", 2))

	dismissed := testCard("dismissed one", 1)
	store.Insert(ctx, dismissed)
	store.MarkDismissed(ctx, dismissed.ID, time.Now().UTC())

	cards, err := store.ListActive(ctx, "course-1", "s1")
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("len = %d; want 3 (dismissed excluded)", len(cards))
	}
	if cards[0].Concept != "high priority" {
		t.Errorf("first card = %q; want high priority", cards[0].Concept)
	}
}

func TestCardStoreMarkDismissed(t *testing.T) {
	store := NewCardStore(openTestDB(t))
	ctx := context.Background()

	card := testCard("recursion", 2)
	store.Insert(ctx, card)

	done := time.Now().UTC().Truncate(time.Second)
	if err := store.MarkDismissed(ctx, card.ID, done); err != nil {
		t.Fatalf("MarkDismissed() error = %v", err)
	}

	got, _ := store.Get(ctx, card.ID)
	if !got.Dismissed || got.CompletedAt == nil {
		t.Errorf("card = %+v; want dismissed with completion time", got)
	}

	if err := store.MarkDismissed(ctx, uuid.New(), done); !errors.Is(err, learning.ErrCardNotFound) {
		t.Errorf("MarkDismissed(missing) error = %v; want ErrCardNotFound", err)
	}
}
