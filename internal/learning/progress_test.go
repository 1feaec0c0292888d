package learning

import (
	"context"
	"testing"
	"time"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1}, {50, 1}, {99, 1}, {100, 1}, {199, 1}, {200, 2}, {1500, 15},
	}
	for _, tt := range tests {
		if got := Level(tt.xp); got != tt.want {
			t.Errorf("Level(%d) = %d; want %d", tt.xp, got, tt.want)
		}
	}
}

func TestLevelName(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{1, "Beginner"}, {4, "Beginner"}, {5, "Intermediate"}, {14, "Intermediate"}, {15, "Advanced"},
	}
	for _, tt := range tests {
		if got := LevelName(tt.level); got != tt.want {
			t.Errorf("LevelName(%d) = %q; want %q", tt.level, got, tt.want)
		}
	}
}

func TestAwardStreakAdvances(t *testing.T) {
	store := newMemProgressStore()
	svc := NewProgressService(store, nil, nil)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }

	// First activity starts the streak at 1.
	p, _, err := svc.Award(ctx, "s1", "c1", 20, ActivityCardCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if p.StudyStreak != 1 {
		t.Errorf("streak after first activity = %d; want 1", p.StudyStreak)
	}

	// Same day again: unchanged.
	p, _, _ = svc.Award(ctx, "s1", "c1", 20, ActivityCardCompleted)
	if p.StudyStreak != 1 {
		t.Errorf("streak after same-day activity = %d; want 1", p.StudyStreak)
	}

	// Next day: +1.
	day = day.AddDate(0, 0, 1)
	p, _, _ = svc.Award(ctx, "s1", "c1", 20, ActivityCardCompleted)
	if p.StudyStreak != 2 {
		t.Errorf("streak after consecutive day = %d; want 2", p.StudyStreak)
	}

	// Skip a day: reset to 1.
	day = day.AddDate(0, 0, 2)
	p, _, _ = svc.Award(ctx, "s1", "c1", 20, ActivityCardCompleted)
	if p.StudyStreak != 1 {
		t.Errorf("streak after gap = %d; want 1", p.StudyStreak)
	}
}

func TestAwardQuizMasterBadge(t *testing.T) {
	store := newMemProgressStore()
	svc := NewProgressService(store, nil, nil)
	ctx := context.Background()

	var badges []Badge
	for i := 0; i < 5; i++ {
		var newBadges []Badge
		var err error
		_, newBadges, err = svc.Award(ctx, "s1", "c1", 30, ActivityQuizPassed)
		if err != nil {
			t.Fatal(err)
		}
		badges = append(badges, newBadges...)
	}

	found := false
	for _, b := range badges {
		if b.ID == "quiz_master" {
			found = true
		}
	}
	if !found {
		t.Errorf("quiz_master not earned after 5 passed quizzes; got %+v", badges)
	}

	// Badge XP compounds: 5*30 activity + 100 badge reward.
	p, _ := store.Get(ctx, "s1", "c1")
	if p.XP != 250 {
		t.Errorf("XP = %d; want 250", p.XP)
	}
}

func TestAwardConceptCrusherBadge(t *testing.T) {
	masteries := &fakeMasteryStore{records: []*mastery.Record{
		{StudentID: "s1", CourseID: "c1", Concept: "a concept", MasteryScore: 85},
		{StudentID: "s1", CourseID: "c1", Concept: "b concept", MasteryScore: 90},
		{StudentID: "s1", CourseID: "c1", Concept: "c concept", MasteryScore: 80},
		{StudentID: "s1", CourseID: "c1", Concept: "d concept", MasteryScore: 79},
	}}
	svc := NewProgressService(newMemProgressStore(), masteries, nil)

	_, newBadges, err := svc.Award(context.Background(), "s1", "c1", 20, ActivityCardCompleted)
	if err != nil {
		t.Fatal(err)
	}

	ids := map[string]bool{}
	for _, b := range newBadges {
		ids[b.ID] = true
	}
	if !ids["concept_crusher"] {
		t.Errorf("concept_crusher not earned with 3 mastered concepts; got %v", ids)
	}
	if !ids["first_steps"] {
		t.Errorf("first_steps not earned on first card; got %v", ids)
	}
}

func TestAwardBadgeNotDuplicated(t *testing.T) {
	svc := NewProgressService(newMemProgressStore(), nil, nil)
	ctx := context.Background()

	_, first, _ := svc.Award(ctx, "s1", "c1", 20, ActivityCardCompleted)
	_, second, _ := svc.Award(ctx, "s1", "c1", 20, ActivityCardCompleted)

	if len(first) != 1 || first[0].ID != "first_steps" {
		t.Errorf("first award badges = %+v; want [first_steps]", first)
	}
	if len(second) != 0 {
		t.Errorf("second award badges = %+v; want none", second)
	}
}

func TestViewFreshStudent(t *testing.T) {
	svc := NewProgressService(newMemProgressStore(), nil, nil)

	view, err := svc.View(context.Background(), "s1", "c1")
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if view.XP != 0 || view.Level != 1 || view.LevelName != "Beginner" {
		t.Errorf("fresh view = %+v; want level 1 Beginner with 0 XP", view)
	}
	if view.XPForNextLevel != 100 || view.XPNeeded != 100 {
		t.Errorf("next level = %d, needed = %d; want 100, 100", view.XPForNextLevel, view.XPNeeded)
	}
	if len(view.AvailableBadges) != 3 {
		t.Errorf("len(AvailableBadges) = %d; want 3", len(view.AvailableBadges))
	}
}

func TestViewAfterProgress(t *testing.T) {
	store := newMemProgressStore()
	svc := NewProgressService(store, nil, nil)
	ctx := context.Background()

	store.Upsert(ctx, &Progress{
		StudentID:           "s1",
		CourseID:            "c1",
		XP:                  250,
		BadgesEarned:        []string{"first_steps"},
		StudyStreak:         3,
		TotalCardsCompleted: 4,
	})

	view, err := svc.View(ctx, "s1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if view.Level != 2 {
		t.Errorf("Level = %d; want 2", view.Level)
	}
	if view.XPProgress != 150 {
		t.Errorf("XPProgress = %d; want 150", view.XPProgress)
	}
	if view.XPNeeded != -50 {
		// 250 XP at level 2 means the next bar (200) is already passed;
		// the raw arithmetic is preserved for the UI.
		t.Errorf("XPNeeded = %d; want -50", view.XPNeeded)
	}
	if len(view.BadgesEarned) != 1 || view.BadgesEarned[0].ID != "first_steps" {
		t.Errorf("BadgesEarned = %+v", view.BadgesEarned)
	}
	for _, b := range view.AvailableBadges {
		if b.ID == "first_steps" {
			t.Error("earned badge listed as available")
		}
	}
}
