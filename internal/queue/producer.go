package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
)

// Producer publishes interaction events to the queue
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// applyDefaults fills in the fields a caller may omit. Weight defaults
// follow the interaction kind: quiz answers carry 1.5, everything else 1.0.
func (e *InteractionEvent) applyDefaults() {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Weight == 0 {
		e.Weight = mastery.Interaction(e.Kind).DefaultWeight()
	}
}

// PublishInteraction publishes an interaction event. Publishing is
// fire-and-forget from the caller's perspective; the caller never waits
// for the mastery update.
func (p *Producer) PublishInteraction(ctx context.Context, event *InteractionEvent) error {
	event.applyDefaults()

	if err := p.conn.PublishJSON(ctx, InteractionQueueName, event); err != nil {
		return fmt.Errorf("failed to publish interaction event: %w", err)
	}

	slog.Debug("published interaction event",
		"event_id", event.ID,
		"student_id", event.StudentID,
		"course_id", event.CourseID,
		"kind", event.Kind,
	)

	return nil
}
