package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATS is a Notifier backed by a NATS connection. Payloads travel as JSON.
type NATS struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATS wraps an established NATS connection.
func NewNATS(conn *nats.Conn, logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{conn: conn, logger: logger}
}

// Publish implements Notifier.
func (n *NATS) Publish(_ context.Context, topic string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pubsub: marshal payload: %w", err)
	}
	if err := n.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("pubsub: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe implements Notifier.
func (n *NATS) Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)
	// A message handler can still be mid-flight when Unsubscribe returns,
	// so the close and every send share one lock.
	var (
		mu     sync.Mutex
		closed bool
	)
	sub, err := n.conn.Subscribe(topic, func(msg *nats.Msg) {
		var payload map[string]any
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			n.logger.Error("pubsub: drop undecodable event", "topic", topic, "err", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- Event{Topic: topic, Payload: payload}:
		default:
			n.logger.Warn("pubsub: drop event for slow subscriber", "topic", topic)
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub: subscribe %s: %w", topic, err)
	}
	var once sync.Once
	stop := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				n.logger.Error("pubsub: unsubscribe failed", "topic", topic, "err", err)
			}
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	// Release the subscription when the request context ends.
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			stop()
		}()
	}
	return ch, stop, nil
}

var (
	_ Notifier = (*Bus)(nil)
	_ Notifier = (*NATS)(nil)
)
