package mastery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
)

// Service applies interaction events to mastery records. Updates for the
// same (student, course, concept) key are serialized through a per-key
// mutex so the load-modify-upsert sequence cannot lose writes; distinct
// keys proceed concurrently.
type Service struct {
	store  Store
	logger *slog.Logger
	locks  sync.Map // key string -> *sync.Mutex
	now    func() time.Time
}

// NewService creates a mastery service backed by the given store.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) lockFor(studentID, courseID, conceptName string) *sync.Mutex {
	key := studentID + "|" + courseID + "|" + conceptName
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Update records one interaction for a concept. Concepts that fail the
// validity filter are dropped without touching the store. The weight
// parameter is accepted for API compatibility with existing callers but
// does not change the stored score; the recompute step reads only the
// interaction count.
func (s *Service) Update(ctx context.Context, studentID, courseID, conceptName string, kind Interaction, weight float64) error {
	_ = weight

	if !concept.IsValid(conceptName) {
		return nil
	}
	// The concept is a display string: casing is preserved and records
	// are deduplicated by exact equality.
	conceptName = strings.TrimSpace(conceptName)

	mu := s.lockFor(studentID, courseID, conceptName)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.store.Get(ctx, studentID, courseID, conceptName)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = &Record{
			ID:        uuid.New(),
			StudentID: studentID,
			CourseID:  courseID,
			Concept:   conceptName,
		}
	case err != nil:
		return fmt.Errorf("load mastery record: %w", err)
	}

	now := s.now().UTC()
	rec.Interactions++
	rec.LastInteraction = now
	rec.UpdatedAt = now

	switch kind {
	case InteractionQuizCorrect:
		rec.CorrectAnswers++
		rec.TotalQuestions++
	case InteractionQuizIncorrect:
		rec.TotalQuestions++
	case InteractionQuestion:
		// Exploration only; the score recompute below credits it through
		// the interaction count.
	default:
		return fmt.Errorf("unknown interaction type %q", kind)
	}

	rec.MasteryScore = computeScore(rec.CorrectAnswers, rec.TotalQuestions, rec.Interactions)

	if err := s.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("persist mastery record: %w", err)
	}

	s.logger.Debug("mastery updated",
		"student_id", studentID,
		"course_id", courseID,
		"concept", conceptName,
		"interaction", string(kind),
		"score", rec.MasteryScore)
	return nil
}

// computeScore recomputes the mastery score from scratch. Quiz accuracy
// is discounted while the sample is small; exploration without quiz
// evidence is capped at 30.
func computeScore(correct, total, interactions int) float64 {
	if total > 0 {
		accuracy := 100 * float64(correct) / float64(total)
		confidence := confidenceFactor(total)
		bonus := math.Min(15, float64(interactions)*1.5)
		return math.Min(100, accuracy*confidence+bonus)
	}
	return math.Min(30, float64(interactions)*3)
}

func confidenceFactor(totalQuestions int) float64 {
	switch {
	case totalQuestions <= 2:
		return 0.4
	case totalQuestions <= 4:
		return 0.6
	case totalQuestions <= 6:
		return 0.8
	default:
		return 1.0
	}
}

// Cleanup deletes every record in a course whose concept no longer
// passes the validity filter, and returns how many were removed. This is
// the maintenance path for records created before the filter existed.
func (s *Service) Cleanup(ctx context.Context, courseID string) (int, error) {
	records, err := s.store.ListByCourse(ctx, courseID, 0)
	if err != nil {
		return 0, fmt.Errorf("list course records: %w", err)
	}

	deleted := 0
	for _, rec := range records {
		if concept.IsValid(rec.Concept) {
			continue
		}
		if err := s.store.Delete(ctx, rec.StudentID, rec.CourseID, rec.Concept); err != nil {
			return deleted, fmt.Errorf("delete %q: %w", rec.Concept, err)
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info("cleaned up invalid concepts",
			"course_id", courseID, "deleted", deleted)
	}
	return deleted, nil
}

// Recalculate recomputes every score in a course from its counters.
// This is the only path that can lower a score, and exists for when the
// scoring formula changes between releases.
func (s *Service) Recalculate(ctx context.Context, courseID string) (int, error) {
	records, err := s.store.ListByCourse(ctx, courseID, 0)
	if err != nil {
		return 0, fmt.Errorf("list course records: %w", err)
	}

	updated := 0
	for _, listed := range records {
		changed, err := s.recalculateOne(ctx, listed.StudentID, listed.CourseID, listed.Concept)
		if err != nil {
			return updated, fmt.Errorf("persist %q: %w", listed.Concept, err)
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}

// recalculateOne re-reads the record under its key lock before
// recomputing, so an Update landing after the course listing is never
// overwritten with stale counters.
func (s *Service) recalculateOne(ctx context.Context, studentID, courseID, conceptName string) (bool, error) {
	mu := s.lockFor(studentID, courseID, conceptName)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.store.Get(ctx, studentID, courseID, conceptName)
	if errors.Is(err, ErrNotFound) {
		// Deleted since the listing; nothing to recompute.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	score := computeScore(rec.CorrectAnswers, rec.TotalQuestions, rec.Interactions)
	if score == rec.MasteryScore {
		return false, nil
	}

	rec.MasteryScore = score
	rec.UpdatedAt = s.now().UTC()
	if err := s.store.Upsert(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}
