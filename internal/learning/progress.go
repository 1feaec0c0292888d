package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

var ErrProgressNotFound = errors.New("student progress not found")

// Activity identifies what kind of event awards XP.
type Activity string

const (
	ActivityCardCompleted Activity = "card_completed"
	ActivityQuizPassed    Activity = "quiz_passed"
)

// Badge is an achievement a student can earn.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	XPReward    int    `json:"xp_reward"`
}

// Badges in award-check order.
var Badges = []Badge{
	{ID: "first_steps", Name: "First Steps", Description: "Complete your first learning card", Icon: "🎯", XPReward: 50},
	{ID: "quiz_master", Name: "Quiz Master", Description: "Answer 5 quiz cards correctly", Icon: "🧠", XPReward: 100},
	{ID: "week_warrior", Name: "Week Warrior", Description: "Maintain a 7-day study streak", Icon: "🔥", XPReward: 150},
	{ID: "concept_crusher", Name: "Concept Crusher", Description: "Master 3 concepts (reach 80% mastery)", Icon: "💪", XPReward: 200},
	{ID: "dedicated_learner", Name: "Dedicated Learner", Description: "Complete 20 learning cards", Icon: "📚", XPReward: 250},
}

// Progress is a student's gamification state within one course.
type Progress struct {
	StudentID           string
	CourseID            string
	XP                  int
	Level               int
	BadgesEarned        []string
	StudyStreak         int
	LastActivityDate    string // yyyy-mm-dd, empty before first activity
	TotalCardsCompleted int
	TotalQuizzesPassed  int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ProgressStore persists per-student progress.
type ProgressStore interface {
	// Get returns progress for the key, or ErrProgressNotFound.
	Get(ctx context.Context, studentID, courseID string) (*Progress, error)

	// Upsert inserts or replaces progress for its key.
	Upsert(ctx context.Context, p *Progress) error
}

const (
	xpPerLevel       = 100
	masteredBar      = 80
	masteredForBadge = 3
)

const dateLayout = "2006-01-02"

// Level is XP divided into 100-point levels, starting at 1.
func Level(xp int) int {
	level := xp / xpPerLevel
	if level < 1 {
		return 1
	}
	return level
}

// LevelName maps a level to its display tier.
func LevelName(level int) string {
	switch {
	case level < 5:
		return "Beginner"
	case level < 15:
		return "Intermediate"
	default:
		return "Advanced"
	}
}

// ProgressService tracks XP, levels, streaks, and badges.
type ProgressService struct {
	store     ProgressStore
	masteries mastery.Store
	logger    *slog.Logger
	now       func() time.Time
}

func NewProgressService(store ProgressStore, masteries mastery.Store, logger *slog.Logger) *ProgressService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressService{
		store:     store,
		masteries: masteries,
		logger:    logger,
		now:       time.Now,
	}
}

// Award adds XP for an activity, advances the study streak, and grants
// any newly earned badges (whose own XP rewards compound immediately).
func (s *ProgressService) Award(ctx context.Context, studentID, courseID string, xp int, activity Activity) (*Progress, []Badge, error) {
	progress, err := s.store.Get(ctx, studentID, courseID)
	switch {
	case errors.Is(err, ErrProgressNotFound):
		progress = &Progress{
			StudentID:    studentID,
			CourseID:     courseID,
			Level:        1,
			BadgesEarned: []string{},
			CreatedAt:    s.now().UTC(),
		}
	case err != nil:
		return nil, nil, fmt.Errorf("load progress: %w", err)
	}

	progress.XP += xp
	progress.Level = Level(progress.XP)

	today := s.now().UTC().Format(dateLayout)
	s.advanceStreak(progress, today)

	switch activity {
	case ActivityCardCompleted:
		progress.TotalCardsCompleted++
	case ActivityQuizPassed:
		progress.TotalQuizzesPassed++
	}

	newBadges := s.checkBadges(ctx, progress)
	progress.UpdatedAt = s.now().UTC()

	if err := s.store.Upsert(ctx, progress); err != nil {
		return nil, nil, fmt.Errorf("persist progress: %w", err)
	}
	return progress, newBadges, nil
}

func (s *ProgressService) advanceStreak(progress *Progress, today string) {
	switch {
	case progress.LastActivityDate == today:
		// Multiple activities on the same day keep the streak as-is.
	case progress.LastActivityDate != "" && nextDay(progress.LastActivityDate) == today:
		progress.StudyStreak++
	default:
		progress.StudyStreak = 1
	}
	progress.LastActivityDate = today
}

func nextDay(date string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format(dateLayout)
}

func (s *ProgressService) checkBadges(ctx context.Context, progress *Progress) []Badge {
	earned := make(map[string]struct{}, len(progress.BadgesEarned))
	for _, id := range progress.BadgesEarned {
		earned[id] = struct{}{}
	}

	var newBadges []Badge
	for _, badge := range Badges {
		if _, has := earned[badge.ID]; has {
			continue
		}

		qualifies := false
		switch badge.ID {
		case "first_steps":
			qualifies = progress.TotalCardsCompleted >= 1
		case "quiz_master":
			qualifies = progress.TotalQuizzesPassed >= 5
		case "week_warrior":
			qualifies = progress.StudyStreak >= 7
		case "concept_crusher":
			qualifies = s.masteredCount(ctx, progress.StudentID, progress.CourseID) >= masteredForBadge
		case "dedicated_learner":
			qualifies = progress.TotalCardsCompleted >= 20
		}
		if !qualifies {
			continue
		}

		progress.BadgesEarned = append(progress.BadgesEarned, badge.ID)
		progress.XP += badge.XPReward
		progress.Level = Level(progress.XP)
		newBadges = append(newBadges, badge)
	}
	return newBadges
}

func (s *ProgressService) masteredCount(ctx context.Context, studentID, courseID string) int {
	if s.masteries == nil {
		return 0
	}
	records, err := s.masteries.ListByStudent(ctx, courseID, studentID)
	if err != nil {
		s.logger.Warn("mastery lookup failed for badge check", "error", err)
		return 0
	}
	count := 0
	for _, rec := range records {
		if rec.MasteryScore >= masteredBar {
			count++
		}
	}
	return count
}

// ProgressView is the UI-facing progress summary.
type ProgressView struct {
	XP                  int     `json:"xp"`
	Level               int     `json:"level"`
	LevelName           string  `json:"level_name"`
	XPForNextLevel      int     `json:"xp_for_next_level"`
	XPProgress          int     `json:"xp_progress"`
	XPNeeded            int     `json:"xp_needed"`
	StudyStreak         int     `json:"study_streak"`
	TotalCardsCompleted int     `json:"total_cards_completed"`
	TotalQuizzesPassed  int     `json:"total_quizzes_passed"`
	BadgesEarned        []Badge `json:"badges_earned"`
	AvailableBadges     []Badge `json:"available_badges"`
}

// View returns the student's progress summary; students without any
// recorded activity get a fresh zero view.
func (s *ProgressService) View(ctx context.Context, studentID, courseID string) (*ProgressView, error) {
	progress, err := s.store.Get(ctx, studentID, courseID)
	switch {
	case errors.Is(err, ErrProgressNotFound):
		progress = &Progress{Level: 1, BadgesEarned: []string{}}
	case err != nil:
		return nil, fmt.Errorf("load progress: %w", err)
	}

	level := Level(progress.XP)
	xpForNext := level * xpPerLevel

	earnedSet := make(map[string]struct{}, len(progress.BadgesEarned))
	earned := []Badge{}
	for _, id := range progress.BadgesEarned {
		earnedSet[id] = struct{}{}
		for _, b := range Badges {
			if b.ID == id {
				earned = append(earned, b)
			}
		}
	}
	available := []Badge{}
	for _, b := range Badges {
		if _, has := earnedSet[b.ID]; !has && len(available) < 3 {
			available = append(available, b)
		}
	}

	return &ProgressView{
		XP:                  progress.XP,
		Level:               level,
		LevelName:           LevelName(level),
		XPForNextLevel:      xpForNext,
		XPProgress:          progress.XP - (level-1)*xpPerLevel,
		XPNeeded:            xpForNext - progress.XP,
		StudyStreak:         progress.StudyStreak,
		TotalCardsCompleted: progress.TotalCardsCompleted,
		TotalQuizzesPassed:  progress.TotalQuizzesPassed,
		BadgesEarned:        earned,
		AvailableBadges:     available,
	}, nil
}
