package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

// HistoryStore records and serves quiz attempts and chat messages. It
// implements mastery.QuizHistory and mastery.ChatHistory.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new SQLite-backed history store.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// RecordAttempt stores a completed quiz attempt.
func (s *HistoryStore) RecordAttempt(ctx context.Context, courseID, studentID string, attempt mastery.QuizAttempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quiz_attempts (id, course_id, student_id, topic, score, total_questions, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), courseID, studentID, attempt.Topic,
		attempt.Score, attempt.TotalQuestions, attempt.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quiz attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a student's quiz attempts, oldest first.
func (s *HistoryStore) ListAttempts(ctx context.Context, courseID, studentID string) ([]mastery.QuizAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, score, total_questions, completed_at
		FROM quiz_attempts
		WHERE course_id = ? AND student_id = ?
		ORDER BY completed_at ASC
		LIMIT 1000`, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("query quiz attempts: %w", err)
	}
	defer rows.Close()

	var attempts []mastery.QuizAttempt
	for rows.Next() {
		var a mastery.QuizAttempt
		if err := rows.Scan(&a.Topic, &a.Score, &a.TotalQuestions, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan quiz attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// RecordMessage stores a chat message.
func (s *HistoryStore) RecordMessage(ctx context.Context, courseID, studentID string, msg mastery.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, course_id, student_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), courseID, studentID, msg.Role, msg.Content, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListMessages returns a student's chat messages, oldest first.
func (s *HistoryStore) ListMessages(ctx context.Context, courseID, studentID string) ([]mastery.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, timestamp
		FROM chat_messages
		WHERE course_id = ? AND student_id = ?
		ORDER BY timestamp ASC
		LIMIT 1000`, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []mastery.ChatMessage
	for rows.Next() {
		var m mastery.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
