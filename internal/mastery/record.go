package mastery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("mastery record not found")

// Interaction identifies what kind of event touched a concept.
type Interaction string

const (
	InteractionQuestion      Interaction = "question"
	InteractionQuizCorrect   Interaction = "quiz_correct"
	InteractionQuizIncorrect Interaction = "quiz_incorrect"
)

// DefaultWeight returns the weight used when a caller supplies none.
// Quiz answers carry more weight than questions.
func (i Interaction) DefaultWeight() float64 {
	switch i {
	case InteractionQuizCorrect, InteractionQuizIncorrect:
		return 1.5
	default:
		return 1.0
	}
}

// Record is the mastery state for one (student, course, concept) key.
type Record struct {
	ID              uuid.UUID
	StudentID       string
	CourseID        string
	Concept         string
	MasteryScore    float64
	Interactions    int
	CorrectAnswers  int
	TotalQuestions  int
	LastInteraction time.Time
	UpdatedAt       time.Time
}

// Key returns the unique identity of the record.
func (r *Record) Key() (studentID, courseID, concept string) {
	return r.StudentID, r.CourseID, r.Concept
}

// Store persists mastery records. Implementations must treat
// (student_id, course_id, concept) as a unique key; concepts are stored
// lowercase.
type Store interface {
	// Get returns the record for the key, or ErrNotFound.
	Get(ctx context.Context, studentID, courseID, concept string) (*Record, error)

	// Upsert inserts or replaces the record for its key.
	Upsert(ctx context.Context, rec *Record) error

	// ListByCourse returns up to limit records for a course (0 means the
	// default cap of 1000).
	ListByCourse(ctx context.Context, courseID string, limit int) ([]*Record, error)

	// ListByStudent returns a student's records within a course.
	ListByStudent(ctx context.Context, courseID, studentID string) ([]*Record, error)

	// ListBelow returns a student's records with mastery below threshold,
	// weakest first.
	ListBelow(ctx context.Context, courseID, studentID string, threshold float64) ([]*Record, error)

	// Delete removes a record by key. Deleting a missing record is not an
	// error.
	Delete(ctx context.Context, studentID, courseID, concept string) error
}
