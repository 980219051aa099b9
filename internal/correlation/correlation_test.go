package correlation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation/memqueue"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

func TestDecode(t *testing.T) {
	r, err := correlation.Decode("branchX,repoY,commitZ")
	require.NoError(t, err)
	assert.Equal(t, correlation.Record{Branch: "branchX", Repository: "repoY", CommitID: "commitZ"}, r)

	r, err = correlation.Decode("a,b,c,d")
	require.NoError(t, err)
	assert.Equal(t, "c,d", r.CommitID)

	_, err = correlation.Decode("only,two")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, correlation.Record{Branch: "b", Repository: "r", CommitID: "c"}.Validate())
	assert.Error(t, correlation.Record{Branch: "b", Repository: "r"}.Validate())
	assert.Error(t, correlation.Record{Branch: "b,x", Repository: "r", CommitID: "c"}.Validate())
	assert.True(t, correlation.Record{}.IsZero())
}

type mapLedger struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

func (l *mapLedger) Claim(_ context.Context, consumer, id string, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.claims == nil {
		l.claims = make(map[string]time.Time)
	}
	key := consumer + "/" + id
	if _, ok := l.claims[key]; ok {
		return false, nil
	}
	l.claims[key] = at
	return true, nil
}

func (l *mapLedger) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestDeduplicatingSkipsRedelivery(t *testing.T) {
	clock := &stepClock{t: time.Unix(1700000000, 0)}
	q := memqueue.New("r2ex", memqueue.WithClock(clock), memqueue.WithVisibilityTimeout(time.Second))
	ledger := &mapLedger{}
	dispatcher := correlation.NewDeduplicating(q, ledger, "dispatcher", correlation.WithDedupClock(clock.Now))
	notifier := correlation.NewDeduplicating(q, ledger, "notifier", correlation.AckDuplicates(), correlation.WithDedupClock(clock.Now))

	_, err := q.Enqueue(t.Context(), correlation.Record{Branch: "release/a", Repository: "r", CommitID: "c"}, "release/a", "d")
	require.NoError(t, err)

	first, err := dispatcher.Dequeue(t.Context(), 0)
	require.NoError(t, err)
	require.True(t, first.IsSome())

	// The dispatcher leaves the message unacknowledged; after the visibility
	// timeout it must not see the same message again.
	clock.Advance(time.Second)
	again, err := dispatcher.Dequeue(t.Context(), 0)
	require.NoError(t, err)
	assert.True(t, again.IsNone())

	// The notifier is a separate consumer and still receives it.
	clock.Advance(time.Second)
	forNotifier, err := notifier.Dequeue(t.Context(), 0)
	require.NoError(t, err)
	require.True(t, forNotifier.IsSome())
	assert.Equal(t, first.Unwrap().ID, forNotifier.Unwrap().ID)
}

func TestDeduplicatingAcksDuplicates(t *testing.T) {
	clock := &stepClock{t: time.Unix(1700000000, 0)}
	q := memqueue.New("r2ex", memqueue.WithClock(clock), memqueue.WithVisibilityTimeout(time.Second))
	ledger := &mapLedger{}
	notifier := correlation.NewDeduplicating(q, ledger, "notifier", correlation.AckDuplicates(), correlation.WithDedupClock(clock.Now))

	_, err := q.Enqueue(t.Context(), correlation.Record{Branch: "b", Repository: "r", CommitID: "c"}, "b", "d")
	require.NoError(t, err)

	got, err := notifier.Dequeue(t.Context(), 0)
	require.NoError(t, err)
	require.True(t, got.IsSome())

	// Acknowledge was lost; the redelivered copy is discarded.
	clock.Advance(time.Second)
	dup, err := notifier.Dequeue(t.Context(), 0)
	require.NoError(t, err)
	assert.True(t, dup.IsNone())
	assert.Equal(t, 0, q.Len())
}

func TestRoutes(t *testing.T) {
	q := memqueue.New("r2ex")
	routes := correlation.Routes{{Token: "digital-twin", Queue: q}}

	got, err := routes.For("r2ex-digital-twin-pipeline")
	require.NoError(t, err)
	assert.Equal(t, "r2ex", got.Name())

	_, err = routes.For("r2ex-other")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}
