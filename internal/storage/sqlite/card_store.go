package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/learning"
)

// CardStore implements learning.CardStore backed by SQLite.
type CardStore struct {
	db *DB
}

// NewCardStore creates a new SQLite-backed card store.
func NewCardStore(db *DB) *CardStore {
	return &CardStore{db: db}
}

// ListActive returns a student's non-dismissed cards, highest priority first.
func (s *CardStore) ListActive(ctx context.Context, courseID, studentID string) ([]*learning.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course_id, student_id, concept, card_type, content_summary,
			quiz_question, priority, dismissed, completed_at, created_at
		FROM learning_cards
		WHERE course_id = ? AND student_id = ? AND dismissed = 0
		ORDER BY priority ASC, created_at ASC`, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("query active cards: %w", err)
	}
	defer rows.Close()

	var cards []*learning.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// Insert stores a new card.
func (s *CardStore) Insert(ctx context.Context, card *learning.Card) error {
	var quizJSON any
	if card.QuizQuestion != nil {
		data, err := json.Marshal(card.QuizQuestion)
		if err != nil {
			return fmt.Errorf("marshal quiz question: %w", err)
		}
		quizJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_cards (id, course_id, student_id, concept, card_type,
			content_summary, quiz_question, priority, dismissed, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID.String(), card.CourseID, card.StudentID, card.Concept, string(card.Type),
		card.ContentSummary, quizJSON, card.Priority,
		boolToInt(card.Dismissed), nullTimePtr(card.CompletedAt), card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// Get returns a card by ID.
func (s *CardStore) Get(ctx context.Context, id uuid.UUID) (*learning.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, course_id, student_id, concept, card_type, content_summary,
			quiz_question, priority, dismissed, completed_at, created_at
		FROM learning_cards
		WHERE id = ?`, id.String())

	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, learning.ErrCardNotFound
	}
	return card, err
}

// MarkDismissed flags a card completed.
func (s *CardStore) MarkDismissed(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE learning_cards SET dismissed = 1, completed_at = ?
		WHERE id = ?`, completedAt, id.String())
	if err != nil {
		return fmt.Errorf("dismiss card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("dismiss card: %w", err)
	}
	if affected == 0 {
		return learning.ErrCardNotFound
	}
	return nil
}

func scanCard(row rowScanner) (*learning.Card, error) {
	var card learning.Card
	var id, cardType string
	var quizJSON sql.NullString
	var dismissed int
	var completedAt sql.NullTime

	err := row.Scan(&id, &card.CourseID, &card.StudentID, &card.Concept, &cardType,
		&card.ContentSummary, &quizJSON, &card.Priority, &dismissed, &completedAt, &card.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan card: %w", err)
	}

	card.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse card id: %w", err)
	}
	card.Type = learning.CardType(cardType)
	card.Dismissed = dismissed != 0
	if completedAt.Valid {
		card.CompletedAt = &completedAt.Time
	}
	if quizJSON.Valid && quizJSON.String != "" {
		var q learning.QuizQuestion
		if err := json.Unmarshal([]byte(quizJSON.String), &q); err != nil {
			return nil, fmt.Errorf("unmarshal quiz question: %w", err)
		}
		card.QuizQuestion = &q
	}
	return &card, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
