package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving publish events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, publishID, eventType string, payload []byte, metadata map[string]string) error

	// GetByPublishID retrieves all events for a specific publish, oldest first.
	GetByPublishID(ctx context.Context, publishID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// AppendEvent stores a typed event.
func AppendEvent(ctx context.Context, store Store, event Event) error {
	return store.Append(ctx, event.PublishID(), event.Type(), event.Payload(), event.Metadata())
}
