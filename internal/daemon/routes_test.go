package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation/memqueue"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ledger"
)

const testPipeline = "r2ex-digital-twin"

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func componentsWithLedger(t *testing.T, ackOnDispatch bool) *Components {
	t.Helper()
	l, err := ledger.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	cfg := &config.Config{}
	cfg.Queue.PipelineToken = "digital-twin"
	cfg.Queue.AckOnDispatch = ackOnDispatch
	return &Components{Config: cfg, Ledger: l}
}

func queueFor(t *testing.T, c *Components, q correlation.Queue, consumer string) correlation.Queue {
	t.Helper()
	view, err := c.routes(q, consumer).For(testPipeline)
	require.NoError(t, err)
	return view
}

func receive(t *testing.T, q correlation.Queue) (correlation.Message, bool) {
	t.Helper()
	opt, err := q.Dequeue(context.Background(), 0)
	require.NoError(t, err)
	return opt.Get()
}

func TestDispatcherLeavesRedeliveredRecordForNotifier(t *testing.T) {
	clock := &manualClock{t: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}
	q := memqueue.New("r2ex", memqueue.WithClock(clock), memqueue.WithVisibilityTimeout(30*time.Second))
	c := componentsWithLedger(t, false)
	dispatcher := queueFor(t, c, q, ConsumerDispatcher)
	notifier := queueFor(t, c, q, ConsumerNotifier)

	const branch = "release/DigitalTwin_DT12"
	for _, commit := range []string{"c1", "c2"} {
		_, err := q.Enqueue(t.Context(), correlation.Record{Branch: branch, Repository: "r", CommitID: commit}, branch, commit)
		require.NoError(t, err)
	}

	// run 1 dispatches and leaves the record in the queue
	msg, ok := receive(t, dispatcher)
	require.True(t, ok)
	assert.Equal(t, branch+",r,c1", msg.Body)

	// the record becomes visible again before run 1 finishes; run 2 skips it
	clock.Advance(31 * time.Second)
	_, ok = receive(t, dispatcher)
	assert.False(t, ok)
	assert.Equal(t, 2, q.Len(), "a duplicate seen by the dispatcher must not be deleted")

	// run 1's notifier still gets its own record
	clock.Advance(31 * time.Second)
	msg, ok = receive(t, notifier)
	require.True(t, ok)
	assert.Equal(t, branch+",r,c1", msg.Body)
	require.NoError(t, notifier.Acknowledge(t.Context(), msg.Receipt))

	msg, ok = receive(t, notifier)
	require.True(t, ok)
	assert.Equal(t, branch+",r,c2", msg.Body)
}

func TestAcksDuplicatesByConsumer(t *testing.T) {
	c := componentsWithLedger(t, false)
	assert.True(t, c.acksDuplicates(ConsumerNotifier))
	assert.False(t, c.acksDuplicates(ConsumerDispatcher))
	assert.False(t, c.acksDuplicates(""))

	c = componentsWithLedger(t, true)
	assert.True(t, c.acksDuplicates(ConsumerDispatcher))
}
