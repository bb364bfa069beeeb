// Package pubsub publishes entity lifecycle notifications and feeds
// GraphQL subscriptions. Topics follow `<TypeName>.created` and
// `<TypeName>.updated`; payloads carry a single key naming the event and
// the entity id as value.
package pubsub

import (
	"context"
	"sync"
)

// Event is one published notification.
type Event struct {
	Topic   string
	Payload map[string]any
}

// Notifier is the transport the resolver publishes through.
// Implementations must be safe for concurrent use.
type Notifier interface {
	// Publish pushes the payload on the topic.
	Publish(ctx context.Context, topic string, payload map[string]any) error

	// Subscribe returns a channel of events for the topic and a stop
	// function releasing the subscription.
	Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error)
}

// subscriber buffers events; slow consumers drop rather than block
// publishers.
const subscriberBuffer = 16

// Bus is an in-process Notifier used in tests and single-process setups.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]*busSub
}

// busSub owns its channel close so a subscription stop and a bus-wide
// Stop never close twice.
type busSub struct {
	ch   chan Event
	once sync.Once
}

func (s *busSub) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewBus returns an empty in-process bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*busSub)}
}

// Publish implements Notifier. Sends are non-blocking and happen under
// the read lock, so a channel is never written after it is closed.
func (b *Bus) Publish(_ context.Context, topic string, payload map[string]any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- Event{Topic: topic, Payload: payload}:
		default:
		}
	}
	return nil
}

// Subscribe implements Notifier.
func (b *Bus) Subscribe(_ context.Context, topic string) (<-chan Event, func(), error) {
	sub := &busSub{ch: make(chan Event, subscriberBuffer)}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()
	stop := func() {
		b.mu.Lock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s == sub {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
		sub.close()
		b.mu.Unlock()
	}
	return sub.ch, stop, nil
}

// Stop closes every subscriber channel and resets the bus. Stop is
// idempotent; events published afterwards are dropped.
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subs {
		for _, s := range subs {
			s.close()
		}
	}
	b.subs = make(map[string][]*busSub)
}
