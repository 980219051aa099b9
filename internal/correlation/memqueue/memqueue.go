// Package memqueue is an in-process correlation queue with FIFO group
// ordering, a dedup window and visibility-timeout redelivery. It backs tests
// and single-process deployments.
package memqueue

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type entry struct {
	msg       correlation.Message
	visibleAt time.Time
	inFlight  bool
}

type dedupRecord struct {
	messageID string
	at        time.Time
}

// Queue is safe for concurrent use.
type Queue struct {
	name        string
	clock       Clock
	visibility  time.Duration
	dedupWindow time.Duration

	mu       sync.Mutex
	entries  []*entry
	dedup    map[string]dedupRecord
	receipts map[string]*entry
	wake     chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

func WithClock(c Clock) Option                    { return func(q *Queue) { q.clock = c } }
func WithVisibilityTimeout(d time.Duration) Option { return func(q *Queue) { q.visibility = d } }
func WithDedupWindow(d time.Duration) Option       { return func(q *Queue) { q.dedupWindow = d } }

// New creates an empty queue.
func New(name string, opts ...Option) *Queue {
	q := &Queue{
		name:        name,
		clock:       systemClock{},
		visibility:  30 * time.Second,
		dedupWindow: 5 * time.Minute,
		dedup:       make(map[string]dedupRecord),
		receipts:    make(map[string]*entry),
		wake:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Name() string { return q.name }

// ContentDedupID derives a dedup id from the body when the producer gives none.
func ContentDedupID(body string) string {
	sum := blake3.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func (q *Queue) Enqueue(ctx context.Context, rec correlation.Record, groupID, dedupID string) (correlation.EnqueueResult, error) {
	if err := ctx.Err(); err != nil {
		return correlation.EnqueueResult{}, ferrors.QueueUnavailable(q.name, err)
	}
	if groupID == "" {
		return correlation.EnqueueResult{}, ferrors.ValidationError("group id is required").Build()
	}
	body := rec.Encode()
	if dedupID == "" {
		dedupID = ContentDedupID(body)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	for id, d := range q.dedup {
		if now.Sub(d.at) >= q.dedupWindow {
			delete(q.dedup, id)
		}
	}
	if d, ok := q.dedup[dedupID]; ok {
		return correlation.EnqueueResult{MessageID: d.messageID, Duplicate: true}, nil
	}

	msg := correlation.Message{
		ID:      uuid.NewString(),
		Body:    body,
		GroupID: groupID,
		DedupID: dedupID,
		SentAt:  now,
	}
	q.entries = append(q.entries, &entry{msg: msg, visibleAt: now})
	q.dedup[dedupID] = dedupRecord{messageID: msg.ID, at: now}
	close(q.wake)
	q.wake = make(chan struct{})
	return correlation.EnqueueResult{MessageID: msg.ID}, nil
}

// pollInterval caps each real-time sleep inside Dequeue so a clock that is
// advanced by hand is noticed promptly.
const pollInterval = 50 * time.Millisecond

// Dequeue waits up to wait, measured on the queue's clock, for a visible
// message.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (foundation.Option[correlation.Message], error) {
	deadline := q.clock.Now().Add(wait)
	for {
		q.mu.Lock()
		msg, ok, nextVisible := q.receive()
		wake := q.wake
		q.mu.Unlock()
		if ok {
			return foundation.Some(msg), nil
		}

		remaining := deadline.Sub(q.clock.Now())
		if remaining <= 0 {
			return foundation.None[correlation.Message](), nil
		}
		if nextVisible > 0 && nextVisible < remaining {
			remaining = nextVisible
		}
		timer := time.NewTimer(min(remaining, pollInterval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return foundation.None[correlation.Message](), ctx.Err()
		case <-wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// receive delivers the oldest visible message whose group has nothing in
// flight. It also returns how long until the next in-flight message expires.
func (q *Queue) receive() (correlation.Message, bool, time.Duration) {
	now := q.clock.Now()
	seen := make(map[string]bool)
	var nextVisible time.Duration
	for _, e := range q.entries {
		if seen[e.msg.GroupID] {
			continue
		}
		seen[e.msg.GroupID] = true
		if e.inFlight && now.Before(e.visibleAt) {
			if d := e.visibleAt.Sub(now); nextVisible == 0 || d < nextVisible {
				nextVisible = d
			}
			continue
		}
		if e.msg.Receipt != "" {
			delete(q.receipts, e.msg.Receipt)
		}
		e.inFlight = true
		e.visibleAt = now.Add(q.visibility)
		e.msg.ReceiveCount++
		e.msg.Receipt = uuid.NewString()
		q.receipts[e.msg.Receipt] = e
		return e.msg, true, 0
	}
	return correlation.Message{}, false, nextVisible
}

func (q *Queue) Acknowledge(ctx context.Context, receipt string) error {
	if err := ctx.Err(); err != nil {
		return ferrors.QueueUnavailable(q.name, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.receipts[receipt]
	if !ok {
		return ferrors.ValidationError("receipt is not valid").WithContext("queue", q.name).Build()
	}
	delete(q.receipts, receipt)
	for i, cur := range q.entries {
		if cur == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of unacknowledged messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

var _ correlation.Queue = (*Queue)(nil)
