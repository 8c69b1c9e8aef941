package storage

import (
	"context"
	"fmt"

	"github.com/vigil-run/vigil/internal/core/domain"
)

// EventStore implements ports.EventPublisher by appending JSON envelopes to
// the events table. External subscribers tail the table by the autoincrement
// id.
type EventStore struct {
	db *DB
}

// NewEventStore creates an event store.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Publish appends each event with its type discriminator.
func (s *EventStore) Publish(ctx context.Context, events []domain.DomainEvent) error {
	for _, event := range events {
		data, err := domain.MarshalEvent(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		_, err = s.db.conn.ExecContext(ctx,
			"INSERT INTO events (event_type, data, occurred_at) VALUES (?, ?, ?)",
			event.EventType(), string(data), formatTime(event.When()))
		if err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}
	return nil
}
