// Package stream implements the Streaming Manager: a transformer chain in
// front of a synchronous fan-out event bus, with per-thread ordering and
// optional buffering.
package stream

import (
	"context"
	"errors"
	"sync"

	"goa.design/agentkernel/apitypes"
)

// Subscriber reacts to published events. Subscribers are registered with a
// Bus and receive every event in registration order until their
// Subscription is closed.
type Subscriber interface {
	HandleEvent(ctx context.Context, event apitypes.Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, event apitypes.Event) error

// HandleEvent calls f.
func (f SubscriberFunc) HandleEvent(ctx context.Context, event apitypes.Event) error {
	return f(ctx, event)
}

// Subscription represents an active registration on a Bus. Close is
// idempotent.
type Subscription interface {
	Close()
}

// Bus fans an event out to every registered subscriber, synchronously and
// in registration order, stopping at the first subscriber error. It is
// grounded on the same contract as the teacher's hooks.Bus: fail-fast
// delivery so a critical subscriber (e.g. persistence) can halt a publish.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscription
}

type subscription struct {
	bus  *Bus
	sub  Subscriber
	once sync.Once
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register adds sub to the bus, to be invoked after every subscriber
// registered before it. Returns an error if sub is nil.
func (b *Bus) Register(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return nil, errors.New("stream: subscriber is required")
	}
	s := &subscription{bus: b, sub: sub}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s, nil
}

// Publish delivers event to every currently registered subscriber, in
// registration order, stopping at the first error. A snapshot of
// subscribers is taken before iteration, so registrations or closes during
// Publish never affect the in-flight delivery.
func (b *Bus) Publish(ctx context.Context, event apitypes.Event) error {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.sub.HandleEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Close removes the subscription from its bus. Idempotent.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		for i, other := range s.bus.subs {
			if other == s {
				s.bus.subs = append(s.bus.subs[:i:i], s.bus.subs[i+1:]...)
				break
			}
		}
	})
}
