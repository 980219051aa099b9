package correlation

import (
	"context"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
)

// Message is one received queue entry.
type Message struct {
	ID           string // stable across redeliveries
	Receipt      string // token for Acknowledge; valid for this delivery only
	Body         string
	GroupID      string
	DedupID      string
	ReceiveCount int
	SentAt       time.Time
}

// Record decodes the message body.
func (m Message) Record() (Record, error) { return Decode(m.Body) }

// Queue is the correlation hand-off channel.
type Queue interface {
	// Enqueue appends rec to groupID's ordered sequence. A dedupID already
	// enqueued within the dedup window is dropped and reported as duplicate.
	Enqueue(ctx context.Context, rec Record, groupID, dedupID string) (EnqueueResult, error)
	// Dequeue waits up to wait for one message. None means the wait elapsed.
	Dequeue(ctx context.Context, wait time.Duration) (foundation.Option[Message], error)
	// Acknowledge permanently removes a received message.
	Acknowledge(ctx context.Context, receipt string) error
	// Name identifies the queue in logs and metrics.
	Name() string
}

// EnqueueResult reports what the transport did with an enqueue.
type EnqueueResult struct {
	MessageID string
	Duplicate bool
}
