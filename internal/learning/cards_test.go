package learning

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
	"github.com/sreeram-gsan/brillia-v3/internal/llm"
	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

type memCardStore struct {
	mu    sync.Mutex
	cards map[uuid.UUID]*Card
}

func newMemCardStore() *memCardStore {
	return &memCardStore{cards: make(map[uuid.UUID]*Card)}
}

func (s *memCardStore) ListActive(_ context.Context, courseID, studentID string) ([]*Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Card
	for _, c := range s.cards {
		if c.CourseID == courseID && c.StudentID == studentID && !c.Dismissed {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Concept < out[j].Concept })
	return out, nil
}

func (s *memCardStore) Insert(_ context.Context, card *Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *card
	s.cards[card.ID] = &cp
	return nil
}

func (s *memCardStore) Get(_ context.Context, id uuid.UUID) (*Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return nil, ErrCardNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memCardStore) MarkDismissed(_ context.Context, id uuid.UUID, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return ErrCardNotFound
	}
	c.Dismissed = true
	c.CompletedAt = &completedAt
	return nil
}

// fakeMasteryStore implements mastery.Store over a fixed record list.
type fakeMasteryStore struct {
	records []*mastery.Record
}

func (s *fakeMasteryStore) Get(context.Context, string, string, string) (*mastery.Record, error) {
	return nil, mastery.ErrNotFound
}

func (s *fakeMasteryStore) Upsert(context.Context, *mastery.Record) error { return nil }

func (s *fakeMasteryStore) ListByCourse(_ context.Context, courseID string, _ int) ([]*mastery.Record, error) {
	var out []*mastery.Record
	for _, r := range s.records {
		if r.CourseID == courseID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeMasteryStore) ListByStudent(_ context.Context, courseID, studentID string) ([]*mastery.Record, error) {
	var out []*mastery.Record
	for _, r := range s.records {
		if r.CourseID == courseID && r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeMasteryStore) ListBelow(_ context.Context, courseID, studentID string, threshold float64) ([]*mastery.Record, error) {
	var out []*mastery.Record
	for _, r := range s.records {
		if r.CourseID == courseID && r.StudentID == studentID && r.MasteryScore < threshold {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MasteryScore < out[j].MasteryScore })
	return out, nil
}

func (s *fakeMasteryStore) Delete(context.Context, string, string, string) error { return nil }

type fakeMaterials struct{ materials []concept.Material }

func (f *fakeMaterials) ListMaterials(context.Context, string) ([]concept.Material, error) {
	return f.materials, nil
}

type memProgressStore struct {
	mu       sync.Mutex
	progress map[string]*Progress
}

func newMemProgressStore() *memProgressStore {
	return &memProgressStore{progress: make(map[string]*Progress)}
}

func (s *memProgressStore) Get(_ context.Context, studentID, courseID string) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[studentID+"|"+courseID]
	if !ok {
		return nil, ErrProgressNotFound
	}
	cp := *p
	cp.BadgesEarned = append([]string(nil), p.BadgesEarned...)
	return &cp, nil
}

func (s *memProgressStore) Upsert(_ context.Context, p *Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.BadgesEarned = append([]string(nil), p.BadgesEarned...)
	s.progress[p.StudentID+"|"+p.CourseID] = &cp
	return nil
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Generate(context.Context, *llm.Request) (*llm.Response, error) {
	return nil, errors.New("API error (status 503)")
}

func newTestCardService(cards CardStore, masteries mastery.Store, randVal float64) *CardService {
	gen := NewGenerator(failingProvider{}, nil)
	progress := NewProgressService(newMemProgressStore(), masteries, nil)
	svc := NewCardService(cards, masteries, &fakeMaterials{}, gen, progress, nil)
	svc.randFloat = func() float64 { return randVal }
	return svc
}

func weakRecords() []*mastery.Record {
	return []*mastery.Record{
		{StudentID: "s1", CourseID: "c1", Concept: "gradient descent", MasteryScore: 25},
		{StudentID: "s1", CourseID: "c1", Concept: "hash table", MasteryScore: 45},
		{StudentID: "s1", CourseID: "c1", Concept: "recursion", MasteryScore: 55},
		{StudentID: "s1", CourseID: "c1", Concept: "binary search tree", MasteryScore: 85},
	}
}

func TestCardsGeneratedFromWeakConcepts(t *testing.T) {
	store := newMemCardStore()
	svc := newTestCardService(store, &fakeMasteryStore{records: weakRecords()}, 0.0) // always review

	cards, err := svc.Cards(context.Background(), "c1", "s1")
	if err != nil {
		t.Fatalf("Cards() error = %v", err)
	}

	// Three concepts below 60; the mastered one is excluded.
	if len(cards) != 3 {
		t.Fatalf("len(cards) = %d; want 3", len(cards))
	}
	// Weakest first.
	if cards[0].Concept != "gradient descent" {
		t.Errorf("first card concept = %q; want gradient descent", cards[0].Concept)
	}
	if cards[0].Priority != 1 {
		t.Errorf("priority for mastery 25 = %d; want 1", cards[0].Priority)
	}
	if cards[1].Priority != 2 {
		t.Errorf("priority for mastery 45 = %d; want 2", cards[1].Priority)
	}
	if cards[2].Priority != 3 {
		t.Errorf("priority for mastery 55 = %d; want 3", cards[2].Priority)
	}
	for _, c := range cards {
		if c.Type != CardReview {
			t.Errorf("card type = %q; want review", c.Type)
		}
		if c.ContentSummary == "" {
			t.Error("card has empty summary")
		}
	}
}

func TestCardsQuizTypeGetsQuestion(t *testing.T) {
	store := newMemCardStore()
	svc := newTestCardService(store, &fakeMasteryStore{records: weakRecords()}, 0.9) // always quiz

	cards, err := svc.Cards(context.Background(), "c1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cards {
		if c.Type != CardQuiz {
			t.Errorf("card type = %q; want quiz", c.Type)
		}
		if c.QuizQuestion == nil {
			t.Fatal("quiz card has no question")
		}
		// Generator provider always fails, so the fallback question shows up.
		if c.QuizQuestion.CorrectAnswer != 0 || len(c.QuizQuestion.Options) != 4 {
			t.Errorf("fallback question malformed: %+v", c.QuizQuestion)
		}
	}
}

func TestCardsExistingSufficient(t *testing.T) {
	store := newMemCardStore()
	ctx := context.Background()
	for _, name := range []string{"a concept", "b concept", "c concept"} {
		store.Insert(ctx, &Card{ID: uuid.New(), CourseID: "c1", StudentID: "s1", Concept: name, Type: CardReview})
	}
	svc := newTestCardService(store, &fakeMasteryStore{records: weakRecords()}, 0.0)

	cards, err := svc.Cards(ctx, "c1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 3 {
		t.Errorf("len(cards) = %d; want the 3 existing cards, no generation", len(cards))
	}
}

func TestDismissReviewCard(t *testing.T) {
	store := newMemCardStore()
	ctx := context.Background()
	card := &Card{ID: uuid.New(), CourseID: "c1", StudentID: "s1", Concept: "recursion", Type: CardReview}
	store.Insert(ctx, card)

	svc := newTestCardService(store, &fakeMasteryStore{}, 0.0)
	res, err := svc.Dismiss(ctx, card.ID, false)
	if err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}

	if res.XPGained != 20 {
		t.Errorf("XPGained = %d; want 20 for review card", res.XPGained)
	}
	// 20 XP for the card + 50 for the first_steps badge.
	if res.CurrentXP != 70 {
		t.Errorf("CurrentXP = %d; want 70", res.CurrentXP)
	}
	if len(res.NewBadges) != 1 || res.NewBadges[0].ID != "first_steps" {
		t.Errorf("NewBadges = %+v; want [first_steps]", res.NewBadges)
	}

	got, _ := store.Get(ctx, card.ID)
	if !got.Dismissed || got.CompletedAt == nil {
		t.Errorf("card not marked dismissed: %+v", got)
	}
}

func TestDismissQuizCardXP(t *testing.T) {
	ctx := context.Background()

	run := func(correct bool) int {
		store := newMemCardStore()
		card := &Card{ID: uuid.New(), CourseID: "c1", StudentID: "s1", Concept: "recursion", Type: CardQuiz}
		store.Insert(ctx, card)
		svc := newTestCardService(store, &fakeMasteryStore{}, 0.0)
		res, err := svc.Dismiss(ctx, card.ID, correct)
		if err != nil {
			t.Fatal(err)
		}
		return res.XPGained
	}

	if xp := run(true); xp != 30 {
		t.Errorf("correct quiz XP = %d; want 30", xp)
	}
	if xp := run(false); xp != 10 {
		t.Errorf("incorrect quiz XP = %d; want 10", xp)
	}
}

func TestDismissMissingCard(t *testing.T) {
	svc := newTestCardService(newMemCardStore(), &fakeMasteryStore{}, 0.0)
	_, err := svc.Dismiss(context.Background(), uuid.New(), false)
	if !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Dismiss() error = %v; want ErrCardNotFound", err)
	}
}
