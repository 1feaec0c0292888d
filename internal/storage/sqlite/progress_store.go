package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sreeram-gsan/brillia-v3/internal/learning"
)

// ProgressStore implements learning.ProgressStore backed by SQLite.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a new SQLite-backed progress store.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Get retrieves progress for a (student, course) pair.
func (s *ProgressStore) Get(ctx context.Context, studentID, courseID string) (*learning.Progress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT student_id, course_id, xp, level, badges_earned, study_streak,
			last_activity_date, total_cards_completed, total_quizzes_passed,
			created_at, updated_at
		FROM student_progress
		WHERE student_id = ? AND course_id = ?`, studentID, courseID)

	var p learning.Progress
	var badges string
	err := row.Scan(&p.StudentID, &p.CourseID, &p.XP, &p.Level, &badges, &p.StudyStreak,
		&p.LastActivityDate, &p.TotalCardsCompleted, &p.TotalQuizzesPassed,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, learning.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}

	if err := json.Unmarshal([]byte(badges), &p.BadgesEarned); err != nil {
		return nil, fmt.Errorf("unmarshal badges: %w", err)
	}
	return &p, nil
}

// Upsert inserts or replaces progress for its key.
func (s *ProgressStore) Upsert(ctx context.Context, p *learning.Progress) error {
	badges, err := json.Marshal(p.BadgesEarned)
	if err != nil {
		return fmt.Errorf("marshal badges: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO student_progress (student_id, course_id, xp, level, badges_earned,
			study_streak, last_activity_date, total_cards_completed, total_quizzes_passed,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, course_id) DO UPDATE SET
			xp=excluded.xp, level=excluded.level, badges_earned=excluded.badges_earned,
			study_streak=excluded.study_streak, last_activity_date=excluded.last_activity_date,
			total_cards_completed=excluded.total_cards_completed,
			total_quizzes_passed=excluded.total_quizzes_passed,
			updated_at=excluded.updated_at`,
		p.StudentID, p.CourseID, p.XP, p.Level, string(badges),
		p.StudyStreak, p.LastActivityDate, p.TotalCardsCompleted, p.TotalQuizzesPassed,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}
