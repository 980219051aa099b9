package memqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func rec(branch string) correlation.Record {
	return correlation.Record{Branch: branch, Repository: "manifest-demo", CommitID: "c0ffee"}
}

func mustReceive(t *testing.T, q *Queue) correlation.Message {
	t.Helper()
	opt, err := q.Dequeue(t.Context(), 0)
	require.NoError(t, err)
	require.True(t, opt.IsSome(), "expected a message")
	return opt.Unwrap()
}

func assertEmpty(t *testing.T, q *Queue) {
	t.Helper()
	opt, err := q.Dequeue(t.Context(), 0)
	require.NoError(t, err)
	assert.True(t, opt.IsNone(), "expected no message, got %v", opt)
}

func TestRoundTrip(t *testing.T) {
	q := New("r2ex", WithClock(newFakeClock()))
	in := correlation.Record{Branch: "branchX", Repository: "repoY", CommitID: "commitZ"}
	_, err := q.Enqueue(t.Context(), in, "branchX", "d1")
	require.NoError(t, err)

	msg := mustReceive(t, q)
	assert.Equal(t, "branchX,repoY,commitZ", msg.Body)
	out, err := msg.Record()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDedupWindow(t *testing.T) {
	clock := newFakeClock()
	q := New("r2ex", WithClock(clock), WithDedupWindow(5*time.Minute))

	first, err := q.Enqueue(t.Context(), rec("release/a"), "release/a", "manifest/release/digitaltwin")
	require.NoError(t, err)
	second, err := q.Enqueue(t.Context(), rec("release/a"), "release/a", "manifest/release/digitaltwin")
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.MessageID, second.MessageID)
	assert.Equal(t, 1, q.Len())

	clock.Advance(5 * time.Minute)
	third, err := q.Enqueue(t.Context(), rec("release/a"), "release/a", "manifest/release/digitaltwin")
	require.NoError(t, err)
	assert.False(t, third.Duplicate)
	assert.Equal(t, 2, q.Len())
}

func TestContentDedupWhenNoID(t *testing.T) {
	q := New("r2ex", WithClock(newFakeClock()))
	_, err := q.Enqueue(t.Context(), rec("release/a"), "release/a", "")
	require.NoError(t, err)
	res, err := q.Enqueue(t.Context(), rec("release/a"), "release/a", "")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestGroupOrdering(t *testing.T) {
	q := New("r2ex", WithClock(newFakeClock()))
	ctx := t.Context()
	for _, id := range []string{"1", "2"} {
		_, err := q.Enqueue(ctx, correlation.Record{Branch: "release/a", Repository: "r", CommitID: id}, "release/a", "a"+id)
		require.NoError(t, err)
	}
	_, err := q.Enqueue(ctx, correlation.Record{Branch: "release/b", Repository: "r", CommitID: "3"}, "release/b", "b3")
	require.NoError(t, err)

	m1 := mustReceive(t, q)
	assert.Equal(t, "release/a,r,1", m1.Body)

	// release/a is blocked while m1 is in flight; release/b proceeds.
	m2 := mustReceive(t, q)
	assert.Equal(t, "release/b,r,3", m2.Body)
	assertEmpty(t, q)

	require.NoError(t, q.Acknowledge(ctx, m1.Receipt))
	m3 := mustReceive(t, q)
	assert.Equal(t, "release/a,r,2", m3.Body)
}

func TestVisibilityTimeoutRedelivers(t *testing.T) {
	clock := newFakeClock()
	q := New("r2ex", WithClock(clock), WithVisibilityTimeout(30*time.Second))
	_, err := q.Enqueue(t.Context(), rec("release/a"), "release/a", "d")
	require.NoError(t, err)

	first := mustReceive(t, q)
	assertEmpty(t, q)

	clock.Advance(30 * time.Second)
	second := mustReceive(t, q)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.ReceiveCount)
	assert.NotEqual(t, first.Receipt, second.Receipt)

	assert.Error(t, q.Acknowledge(t.Context(), first.Receipt), "stale receipt")
	require.NoError(t, q.Acknowledge(t.Context(), second.Receipt))
	assert.Equal(t, 0, q.Len())
}

func TestDequeueTimesOut(t *testing.T) {
	q := New("r2ex")
	start := time.Now()
	opt, err := q.Dequeue(t.Context(), 30*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, opt.IsNone())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDequeueWakesOnEnqueue(t *testing.T) {
	q := New("r2ex")
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = q.Enqueue(context.Background(), rec("release/a"), "release/a", "d")
	}()
	opt, err := q.Dequeue(t.Context(), 5*time.Second)
	require.NoError(t, err)
	assert.True(t, opt.IsSome())
}

func TestDequeueHonorsCancel(t *testing.T) {
	q := New("r2ex")
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := q.Dequeue(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDequeueWaitFollowsClock(t *testing.T) {
	clock := newFakeClock()
	q := New("r2ex", WithClock(clock), WithVisibilityTimeout(30*time.Second))
	_, err := q.Enqueue(t.Context(), rec("release/a"), "release/a", "d")
	require.NoError(t, err)
	first := mustReceive(t, q)

	type result struct {
		msg correlation.Message
		ok  bool
	}
	done := make(chan result, 1)
	go func() {
		opt, _ := q.Dequeue(context.Background(), time.Minute)
		msg, ok := opt.Get()
		done <- result{msg, ok}
	}()

	clock.Advance(31 * time.Second)
	var r result
	select {
	case r = <-done:
		require.True(t, r.ok)
		assert.Equal(t, first.ID, r.msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("redelivery under an advanced clock was not observed")
	}
	require.NoError(t, q.Acknowledge(t.Context(), r.msg.Receipt))

	go func() {
		opt, _ := q.Dequeue(context.Background(), time.Minute)
		msg, ok := opt.Get()
		done <- result{msg, ok}
	}()
	timeout := time.After(2 * time.Second)
	for {
		clock.Advance(2 * time.Minute)
		select {
		case r := <-done:
			assert.False(t, r.ok)
			return
		case <-timeout:
			t.Fatal("wait deadline on the queue clock was not honored")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
