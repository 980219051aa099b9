package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves execution events.
type Store interface {
	// Append adds e to the store. The stored timestamp is e.Timestamp().
	Append(ctx context.Context, e Event) error

	// ByExecution returns all events of one execution in append order.
	ByExecution(ctx context.Context, executionID string) ([]Event, error)

	// Range returns events with timestamps in [start, end].
	Range(ctx context.Context, start, end time.Time) ([]Event, error)

	Close() error
}
