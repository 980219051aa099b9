// Package events is the typed in-process bus that hands decoded ingress
// events from the transports (HTTP, Kafka, CLI) to their handlers.
//
// It is not durable. Execution history lives in internal/eventstore.
package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Bus fans events out to typed subscribers. Publish blocks until every
// matching subscriber accepted the event or ctx is done.
type Bus struct {
	mu     sync.RWMutex
	topics map[reflect.Type]map[uint64]*subscription
	seq    atomic.Uint64
	closed atomic.Bool
	once   sync.Once
}

type subscription struct {
	deliver  func(ctx context.Context, evt any) error
	shutdown func()
}

// NewBus returns an open bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]map[uint64]*subscription)}
}

// Subscribe returns a channel of events assignable to T and a function that
// cancels the subscription. Interface types receive every implementing event.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	topic := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	var closeOnce sync.Once
	closeCh := func() { closeOnce.Do(func() { close(ch) }) }

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}

	id := b.seq.Add(1)
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]*subscription)
	}
	b.topics[topic][id] = &subscription{
		deliver: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return ferrors.NewError(ferrors.CategoryInternal, "event type mismatch").
					WithContext("expected", topic.String()).
					WithContext("actual", reflect.TypeOf(evt).String()).
					Build()
			}
			select {
			case ch <- v:
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryInternal, "event publish canceled").
					WithContext("event_type", topic.String()).
					Build()
			}
		},
		shutdown: closeCh,
	}

	var unsubOnce sync.Once
	return ch, func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			if subs, ok := b.topics[topic]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
			b.mu.Unlock()
			closeCh()
		})
	}
}

// Subscribers counts active subscriptions for T.
func Subscribers[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[reflect.TypeFor[T]()])
}

// Publish delivers evt to every matching subscriber.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if b.closed.Load() {
		return ferrors.NewError(ferrors.CategoryInternal, "event bus is closed").Build()
	}

	evtType := reflect.TypeOf(evt)
	var targets []*subscription

	b.mu.RLock()
	for topic, subs := range b.topics {
		if topic != evtType && (topic.Kind() != reflect.Interface || !evtType.Implements(topic)) {
			continue
		}
		for _, s := range subs {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every subscription channel. Publishing afterwards fails.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)

		b.mu.Lock()
		topics := b.topics
		b.topics = make(map[reflect.Type]map[uint64]*subscription)
		b.mu.Unlock()

		for _, subs := range topics {
			for _, s := range subs {
				s.shutdown()
			}
		}
	})
}
