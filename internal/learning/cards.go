// Package learning builds personalized review artifacts on top of
// mastery data: learning cards, gamified progress, and study plans.
package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
	"github.com/sreeram-gsan/brillia-v3/internal/llm"
	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

var ErrCardNotFound = errors.New("learning card not found")

// CardType distinguishes review cards from quiz cards.
type CardType string

const (
	CardReview CardType = "review"
	CardQuiz   CardType = "quiz"
)

// QuizQuestion is a single multiple-choice question on a quiz card.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Card is one personalized learning card.
type Card struct {
	ID             uuid.UUID     `json:"id"`
	CourseID       string        `json:"course_id"`
	StudentID      string        `json:"student_id"`
	Concept        string        `json:"concept"`
	Type           CardType      `json:"card_type"`
	ContentSummary string        `json:"content_summary"`
	QuizQuestion   *QuizQuestion `json:"quiz_question,omitempty"`
	Priority       int           `json:"priority"`
	Dismissed      bool          `json:"dismissed"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// CardStore persists learning cards.
type CardStore interface {
	// ListActive returns a student's non-dismissed cards for a course.
	ListActive(ctx context.Context, courseID, studentID string) ([]*Card, error)

	// Insert stores a new card.
	Insert(ctx context.Context, card *Card) error

	// Get returns a card by ID, or ErrCardNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Card, error)

	// MarkDismissed flags a card completed at the given time.
	MarkDismissed(ctx context.Context, id uuid.UUID, completedAt time.Time) error
}

const (
	// Below this mastery a concept is a card candidate.
	cardMasteryThreshold = 60

	// Cards are regenerated when fewer than this many are live.
	minLiveCards = 3

	maxGeneratedCards = 5

	// Fraction of generated cards that are review rather than quiz.
	reviewCardRatio = 0.7
)

// Generator produces card content: concise concept summaries and quick
// quiz questions. Both degrade to canned content when the model fails.
type Generator struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewGenerator(provider llm.Provider, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, logger: logger}
}

const summarySystemPrompt = `You are an educational assistant helping students review concepts.
Create a concise, clear summary (3-4 sentences) of the given concept that a student can quickly read to refresh their understanding.
Focus on the key ideas and why this concept matters.`

const quizSystemPrompt = `You are an educational quiz generator. Create a single, clear multiple-choice question
to test understanding of a concept. The question should be at an appropriate difficulty level for review.`

// Summary returns a short review blurb for a concept, grounded in
// materials that mention it. Never fails.
func (g *Generator) Summary(ctx context.Context, conceptName string, materials []concept.Material) string {
	if g.provider != nil {
		prompt := fmt.Sprintf("Concept: %s\n\nRelevant course materials:\n%s\n\nCreate a brief, engaging summary that helps a student review this concept. Keep it to 3-4 sentences maximum.",
			conceptName, relevantContext(conceptName, materials))

		summary, err := llm.Complete(ctx, g.provider, summarySystemPrompt, prompt)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
		g.logger.Warn("summary generation failed", "concept", conceptName, "error", err)
	}
	return fmt.Sprintf("Review the concept of %s. Focus on understanding the fundamentals and how it connects to other topics in the course.", conceptName)
}

// QuickQuiz returns one multiple-choice question for a concept. Never
// fails; the fallback question is generic but answerable.
func (g *Generator) QuickQuiz(ctx context.Context, conceptName string, materials []concept.Material) *QuizQuestion {
	if g.provider != nil {
		prompt := fmt.Sprintf(`Concept: %s

Course context:
%s

Generate ONE multiple-choice question in this exact JSON format:
{
    "question": "Your question here",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correct_answer": 0,
    "explanation": "Brief explanation of why this is correct"
}

Make the question clear and the options plausible.`, conceptName, relevantContext(conceptName, materials))

		raw, err := llm.Complete(ctx, g.provider, quizSystemPrompt, prompt)
		if err == nil {
			var q QuizQuestion
			if jsonErr := json.Unmarshal([]byte(llm.StripFences(raw)), &q); jsonErr == nil && q.Question != "" && len(q.Options) > 0 {
				return &q
			}
		}
		g.logger.Warn("quiz generation failed", "concept", conceptName, "error", err)
	}

	return &QuizQuestion{
		Question: fmt.Sprintf("What is a key characteristic of %s?", conceptName),
		Options: []string{
			"It is fundamental to understanding the topic",
			"It is rarely used in practice",
			"It is only theoretical",
			"It has no practical applications",
		},
		CorrectAnswer: 0,
		Explanation:   fmt.Sprintf("Understanding %s is crucial for mastering this subject.", conceptName),
	}
}

// relevantContext gathers excerpts from materials mentioning the
// concept, capped to keep prompts small.
func relevantContext(conceptName string, materials []concept.Material) string {
	lower := strings.ToLower(conceptName)
	var relevant []string
	for _, m := range materials {
		if !strings.Contains(strings.ToLower(m.Content), lower) {
			continue
		}
		relevant = append(relevant, concept.Excerpt(m.Content, 500))
		if len(relevant) == 3 {
			break
		}
	}
	if len(relevant) == 0 {
		return "No specific materials found."
	}
	return strings.Join(relevant, "\n\n")
}

// MaterialSource supplies course materials for card generation.
type MaterialSource interface {
	ListMaterials(ctx context.Context, courseID string) ([]concept.Material, error)
}

// CardService serves and regenerates learning cards.
type CardService struct {
	cards     CardStore
	masteries mastery.Store
	materials MaterialSource
	generator *Generator
	progress  *ProgressService
	logger    *slog.Logger
	randFloat func() float64
	now       func() time.Time
}

func NewCardService(cards CardStore, masteries mastery.Store, materials MaterialSource, generator *Generator, progress *ProgressService, logger *slog.Logger) *CardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardService{
		cards:     cards,
		masteries: masteries,
		materials: materials,
		generator: generator,
		progress:  progress,
		logger:    logger,
		randFloat: rand.Float64,
		now:       time.Now,
	}
}

// Cards returns the student's live cards, generating new ones from
// low-mastery concepts when fewer than three remain.
func (s *CardService) Cards(ctx context.Context, courseID, studentID string) ([]*Card, error) {
	existing, err := s.cards.ListActive(ctx, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	if len(existing) >= minLiveCards {
		return existing, nil
	}

	weak, err := s.masteries.ListBelow(ctx, courseID, studentID, cardMasteryThreshold)
	if err != nil {
		return nil, fmt.Errorf("list weak concepts: %w", err)
	}

	var courseMaterials []concept.Material
	if s.materials != nil {
		courseMaterials, err = s.materials.ListMaterials(ctx, courseID)
		if err != nil {
			s.logger.Warn("materials unavailable for card generation", "error", err)
		}
	}

	cards := existing
	for i, rec := range weak {
		if i >= maxGeneratedCards {
			break
		}

		card := &Card{
			ID:             uuid.New(),
			CourseID:       courseID,
			StudentID:      studentID,
			Concept:        rec.Concept,
			Type:           CardReview,
			ContentSummary: s.generator.Summary(ctx, rec.Concept, courseMaterials),
			Priority:       cardPriority(rec.MasteryScore),
			CreatedAt:      s.now().UTC(),
		}
		if s.randFloat() >= reviewCardRatio {
			card.Type = CardQuiz
			card.QuizQuestion = s.generator.QuickQuiz(ctx, rec.Concept, courseMaterials)
		}

		if err := s.cards.Insert(ctx, card); err != nil {
			return nil, fmt.Errorf("insert card: %w", err)
		}
		cards = append(cards, card)
	}

	return cards, nil
}

func cardPriority(masteryScore float64) int {
	switch {
	case masteryScore < 40:
		return 1
	case masteryScore < 50:
		return 2
	default:
		return 3
	}
}

// DismissResult reports the outcome of completing a card.
type DismissResult struct {
	XPGained     int     `json:"xp_gained"`
	NewBadges    []Badge `json:"new_badges"`
	CurrentXP    int     `json:"current_xp"`
	CurrentLevel int     `json:"current_level"`
}

// Dismiss completes a card and awards XP: 20 for a review card, 30 for
// a correct quiz answer, 10 for an incorrect attempt.
func (s *CardService) Dismiss(ctx context.Context, cardID uuid.UUID, correct bool) (*DismissResult, error) {
	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.Dismissed {
		return nil, ErrCardNotFound
	}

	if err := s.cards.MarkDismissed(ctx, cardID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("dismiss card: %w", err)
	}

	xp, activity := 20, ActivityCardCompleted
	if card.Type == CardQuiz {
		if correct {
			xp, activity = 30, ActivityQuizPassed
		} else {
			xp = 10
		}
	}

	progress, newBadges, err := s.progress.Award(ctx, card.StudentID, card.CourseID, xp, activity)
	if err != nil {
		return nil, fmt.Errorf("award progress: %w", err)
	}

	return &DismissResult{
		XPGained:     xp,
		NewBadges:    newBadges,
		CurrentXP:    progress.XP,
		CurrentLevel: progress.Level,
	}, nil
}
