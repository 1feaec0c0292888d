// Package postgres provides a PostgreSQL-backed mastery store for
// multi-instance deployments where SQLite's single writer is not enough.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

const defaultCourseLimit = 1000

// MasteryStore implements mastery.Store using PostgreSQL.
type MasteryStore struct {
	pool *pgxpool.Pool
}

// NewMasteryStore creates a new PostgreSQL-backed mastery store.
func NewMasteryStore(pool *pgxpool.Pool) *MasteryStore {
	return &MasteryStore{pool: pool}
}

// Schema for the concept_mastery table; applied at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS concept_mastery (
	id               UUID PRIMARY KEY,
	student_id       TEXT NOT NULL,
	course_id        TEXT NOT NULL,
	concept          TEXT NOT NULL,
	mastery_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	interactions     INTEGER NOT NULL DEFAULT 0,
	correct_answers  INTEGER NOT NULL DEFAULT 0,
	total_questions  INTEGER NOT NULL DEFAULT 0,
	last_interaction TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL,
	UNIQUE (student_id, course_id, concept)
);
CREATE INDEX IF NOT EXISTS idx_concept_mastery_course
	ON concept_mastery (course_id);
CREATE INDEX IF NOT EXISTS idx_concept_mastery_student
	ON concept_mastery (course_id, student_id);
`

// EnsureSchema creates the concept_mastery table if it does not exist.
func (s *MasteryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const masteryColumns = `id, student_id, course_id, concept, mastery_score,
	interactions, correct_answers, total_questions, last_interaction, updated_at`

// Get retrieves the record for a (student, course, concept) key.
func (s *MasteryStore) Get(ctx context.Context, studentID, courseID, concept string) (*mastery.Record, error) {
	query := `
		SELECT ` + masteryColumns + `
		FROM concept_mastery
		WHERE student_id = $1 AND course_id = $2 AND concept = $3
	`
	rec := &mastery.Record{}
	err := s.pool.QueryRow(ctx, query, studentID, courseID, concept).Scan(
		&rec.ID, &rec.StudentID, &rec.CourseID, &rec.Concept, &rec.MasteryScore,
		&rec.Interactions, &rec.CorrectAnswers, &rec.TotalQuestions,
		&rec.LastInteraction, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mastery.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query mastery record: %w", err)
	}
	return rec, nil
}

// Upsert inserts or replaces a record keyed by (student, course, concept).
func (s *MasteryStore) Upsert(ctx context.Context, rec *mastery.Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO concept_mastery (id, student_id, course_id, concept, mastery_score,
			interactions, correct_answers, total_questions, last_interaction, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, course_id, concept) DO UPDATE SET
			mastery_score = EXCLUDED.mastery_score,
			interactions = EXCLUDED.interactions,
			correct_answers = EXCLUDED.correct_answers,
			total_questions = EXCLUDED.total_questions,
			last_interaction = EXCLUDED.last_interaction,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.StudentID, rec.CourseID, rec.Concept, rec.MasteryScore,
		rec.Interactions, rec.CorrectAnswers, rec.TotalQuestions,
		rec.LastInteraction, rec.UpdatedAt,
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
	query := `
		SELECT ` + masteryColumns + `
		FROM concept_mastery
		WHERE course_id = $1
		ORDER BY concept, student_id
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("query course records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListByStudent returns a student's records within a course.
func (s *MasteryStore) ListByStudent(ctx context.Context, courseID, studentID string) ([]*mastery.Record, error) {
	query := `
		SELECT ` + masteryColumns + `
		FROM concept_mastery
		WHERE course_id = $1 AND student_id = $2
		ORDER BY concept
	`
	rows, err := s.pool.Query(ctx, query, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("query student records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListBelow returns a student's records under the threshold, weakest first.
func (s *MasteryStore) ListBelow(ctx context.Context, courseID, studentID string, threshold float64) ([]*mastery.Record, error) {
	query := `
		SELECT ` + masteryColumns + `
		FROM concept_mastery
		WHERE course_id = $1 AND student_id = $2 AND mastery_score < $3
		ORDER BY mastery_score ASC
	`
	rows, err := s.pool.Query(ctx, query, courseID, studentID, threshold)
	if err != nil {
		return nil, fmt.Errorf("query weak records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Delete removes a record by key.
func (s *MasteryStore) Delete(ctx context.Context, studentID, courseID, concept string) error {
	query := `
		DELETE FROM concept_mastery
		WHERE student_id = $1 AND course_id = $2 AND concept = $3
	`
	if _, err := s.pool.Exec(ctx, query, studentID, courseID, concept); err != nil {
		return fmt.Errorf("delete mastery record: %w", err)
	}
	return nil
}

func collectRecords(rows pgx.Rows) ([]*mastery.Record, error) {
	var records []*mastery.Record
	for rows.Next() {
		rec := &mastery.Record{}
		err := rows.Scan(
			&rec.ID, &rec.StudentID, &rec.CourseID, &rec.Concept, &rec.MasteryScore,
			&rec.Interactions, &rec.CorrectAnswers, &rec.TotalQuestions,
			&rec.LastInteraction, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan mastery record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
