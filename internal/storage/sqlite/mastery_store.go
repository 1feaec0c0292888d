package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

const defaultCourseLimit = 1000

// MasteryStore implements mastery.Store backed by SQLite.
type MasteryStore struct {
	db *DB
}

// NewMasteryStore creates a new SQLite-backed mastery store.
func NewMasteryStore(db *DB) *MasteryStore {
	return &MasteryStore{db: db}
}

const masteryColumns = `id, student_id, course_id, concept, mastery_score,
	interactions, correct_answers, total_questions, last_interaction, updated_at`

// Get retrieves the record for a (student, course, concept) key.
func (s *MasteryStore) Get(ctx context.Context, studentID, courseID, concept string) (*mastery.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+masteryColumns+`
		FROM concept_mastery
		WHERE student_id = ? AND course_id = ? AND concept = ?`,
		studentID, courseID, concept)
	return scanMastery(row)
}

// Upsert inserts or replaces a record keyed by (student, course, concept).
func (s *MasteryStore) Upsert(ctx context.Context, rec *mastery.Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO concept_mastery (id, student_id, course_id, concept, mastery_score,
			interactions, correct_answers, total_questions, last_interaction, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, course_id, concept) DO UPDATE SET
			mastery_score=excluded.mastery_score,
			interactions=excluded.interactions,
			correct_answers=excluded.correct_answers,
			total_questions=excluded.total_questions,
			last_interaction=excluded.last_interaction,
			updated_at=excluded.updated_at`,
		rec.ID.String(), rec.StudentID, rec.CourseID, rec.Concept, rec.MasteryScore,
		rec.Interactions, rec.CorrectAnswers, rec.TotalQuestions,
		nullTime(rec.LastInteraction), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert mastery record: %w", err)
	}
	return nil
}

// ListByCourse returns up to limit records for a course.
func (s *MasteryStore) ListByCourse(ctx context.Context, courseID string, limit int) ([]*mastery.Record, error) {
	if limit <= 0 {
		limit = defaultCourseLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+masteryColumns+`
		FROM concept_mastery
		WHERE course_id = ?
		ORDER BY concept, student_id
		LIMIT ?`, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("query course records: %w", err)
	}
	defer rows.Close()
	return scanMasteryRows(rows)
}

// ListByStudent returns a student's records within a course.
func (s *MasteryStore) ListByStudent(ctx context.Context, courseID, studentID string) ([]*mastery.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+masteryColumns+`
		FROM concept_mastery
		WHERE course_id = ? AND student_id = ?
		ORDER BY concept`, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("query student records: %w", err)
	}
	defer rows.Close()
	return scanMasteryRows(rows)
}

// ListBelow returns a student's records under the threshold, weakest first.
func (s *MasteryStore) ListBelow(ctx context.Context, courseID, studentID string, threshold float64) ([]*mastery.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+masteryColumns+`
		FROM concept_mastery
		WHERE course_id = ? AND student_id = ? AND mastery_score < ?
		ORDER BY mastery_score ASC`, courseID, studentID, threshold)
	if err != nil {
		return nil, fmt.Errorf("query weak records: %w", err)
	}
	defer rows.Close()
	return scanMasteryRows(rows)
}

// Delete removes a record by key.
func (s *MasteryStore) Delete(ctx context.Context, studentID, courseID, concept string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM concept_mastery
		WHERE student_id = ? AND course_id = ? AND concept = ?`,
		studentID, courseID, concept)
	if err != nil {
		return fmt.Errorf("delete mastery record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMastery(row rowScanner) (*mastery.Record, error) {
	var rec mastery.Record
	var id string
	var lastInteraction sql.NullTime

	err := row.Scan(&id, &rec.StudentID, &rec.CourseID, &rec.Concept, &rec.MasteryScore,
		&rec.Interactions, &rec.CorrectAnswers, &rec.TotalQuestions,
		&lastInteraction, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mastery.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan mastery record: %w", err)
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse record id: %w", err)
	}
	if lastInteraction.Valid {
		rec.LastInteraction = lastInteraction.Time
	}
	return &rec, nil
}

func scanMasteryRows(rows *sql.Rows) ([]*mastery.Record, error) {
	var records []*mastery.Record
	for rows.Next() {
		rec, err := scanMastery(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
