// Package eventbus connects the Stall Detector (spec 4.5) to its
// subscribers; the audit writer (spec 6.4) does not publish on it. A Bus is either the
// default in-process channel implementation or, when nats_url is
// configured, a NATS-backed one for multi-instance deployments that
// share a single chat workspace.
//
// Grounded on: kdlbs-kandev's internal/events/bus package (EventBus
// interface, subject-based pub/sub, MemoryEventBus/NATSEventBus split)
// - trimmed to what agent-intercom's one publisher (the stall
// detector) and single in-process consumer actually need: no
// queue-group load balancing, no wildcard subject matching, no
// request/reply, since nothing in this domain needs them.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Event is an envelope published on the bus. Payload is an
// already-marshaled JSON document; publishers decide their own shape
// (stall.Event, models.AuditRecord, ...).
type Event struct {
	Subject string
	Payload []byte
}

// Handler receives events delivered to a subscription.
type Handler func(ctx context.Context, event Event)

// Subscription controls one registered Handler.
type Subscription interface {
	Unsubscribe()
}

// Bus is the publish/subscribe contract shared by every backend.
type Bus interface {
	Publish(ctx context.Context, subject string, payload any) error
	Subscribe(subject string, handler Handler) (Subscription, error)
	Close() error
}

// marshal is the shared payload encoding used by every backend's
// Publish, so callers can pass structs directly instead of
// pre-encoding JSON themselves.
func marshal(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		return data, nil
	}
}

// channelBus is the default in-process backend: one slice of
// subscribers per subject, delivered asynchronously in a goroutine per
// handler so a slow subscriber cannot block the publisher.
type channelBus struct {
	mu     sync.RWMutex
	subs   map[string][]*channelSubscription
	logger *zap.Logger
	closed bool
}

type channelSubscription struct {
	bus     *channelBus
	subject string
	handler Handler
}

// NewChannelBus constructs the default in-process event bus.
func NewChannelBus(logger *zap.Logger) Bus {
	return &channelBus{subs: make(map[string][]*channelSubscription), logger: logger}
}

func (b *channelBus) Publish(ctx context.Context, subject string, payload any) error {
	data, err := marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	event := Event{Subject: subject, Payload: data}
	for _, sub := range b.subs[subject] {
		go sub.handler(ctx, event)
	}
	return nil
}

func (b *channelBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}
	sub := &channelSubscription{bus: b, subject: subject, handler: handler}
	b.subs[subject] = append(b.subs[subject], sub)
	return sub, nil
}

func (s *channelSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.subs[s.subject]
	for i, sub := range subs {
		if sub == s {
			s.bus.subs[s.subject] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *channelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]*channelSubscription)
	return nil
}
