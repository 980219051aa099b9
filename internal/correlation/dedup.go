package correlation

import (
	"context"
	"log/slog"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/metrics"
)

// Ledger remembers which messages a consumer has already processed.
type Ledger interface {
	// Claim records (consumer, messageID). It returns false when the pair was
	// already claimed.
	Claim(ctx context.Context, consumer, messageID string, at time.Time) (bool, error)
	// Prune drops claims older than before and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Deduplicating wraps a Queue so one consumer never observes the same
// message twice. Duplicates are skipped; when AckDuplicates is set they are
// also acknowledged so they stop circulating.
type Deduplicating struct {
	Queue
	ledger        Ledger
	consumer      string
	ackDuplicates bool
	recorder      metrics.Recorder
	now           func() time.Time
}

// DedupOption configures a Deduplicating queue.
type DedupOption func(*Deduplicating)

// AckDuplicates makes skipped duplicates get acknowledged.
func AckDuplicates() DedupOption { return func(d *Deduplicating) { d.ackDuplicates = true } }

// WithDedupRecorder reports duplicates to r.
func WithDedupRecorder(r metrics.Recorder) DedupOption {
	return func(d *Deduplicating) { d.recorder = metrics.OrNoop(r) }
}

// WithDedupClock overrides the claim timestamp source.
func WithDedupClock(now func() time.Time) DedupOption {
	return func(d *Deduplicating) { d.now = now }
}

// NewDeduplicating wraps q for consumer using ledger.
func NewDeduplicating(q Queue, ledger Ledger, consumer string, opts ...DedupOption) *Deduplicating {
	d := &Deduplicating{
		Queue:    q,
		ledger:   ledger,
		consumer: consumer,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dequeue returns the first message this consumer has not yet claimed,
// spending at most wait in total.
func (d *Deduplicating) Dequeue(ctx context.Context, wait time.Duration) (foundation.Option[Message], error) {
	deadline := d.now().Add(wait)
	remaining := wait
	for {
		opt, err := d.Queue.Dequeue(ctx, remaining)
		if err != nil || opt.IsNone() {
			return opt, err
		}
		msg := opt.Unwrap()

		claimed, err := d.ledger.Claim(ctx, d.consumer, msg.ID, d.now())
		if err != nil {
			return foundation.None[Message](), err
		}
		if claimed {
			return opt, nil
		}

		d.recorder.IncDequeue("duplicate")
		slog.Warn("Skipping already processed correlation message",
			logfields.Queue(d.Name()),
			logfields.MessageID(msg.ID),
			slog.String("consumer", d.consumer),
			slog.Int("receive_count", msg.ReceiveCount))
		if d.ackDuplicates {
			if err := d.Queue.Acknowledge(ctx, msg.Receipt); err != nil {
				slog.Warn("Failed to acknowledge duplicate", logfields.MessageID(msg.ID), logfields.Error(err))
			}
		}

		remaining = deadline.Sub(d.now())
		if remaining <= 0 {
			return foundation.None[Message](), nil
		}
	}
}
