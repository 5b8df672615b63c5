// Package realtime fans narrative events out to in-process subscribers keyed
// by topic.
package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
)

// DefaultBuffer is the per-subscriber queue length used when none is set.
const DefaultBuffer = 64

// Hub delivers published events to every subscription on a topic. Each
// subscription has its own buffer. A full buffer makes Publish wait for that
// subscriber until it drains or unsubscribes; when the publish context ends
// first, the subscriber is evicted.
type Hub struct {
	mu     sync.Mutex
	buffer int
	topics map[string]map[*Subscription]struct{}
	closed bool
}

// NewHub returns a hub with buffer slots per subscription.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{buffer: buffer, topics: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives events for one topic until closed.
type Subscription struct {
	topic  string
	hub    *Hub
	events chan event.Event
	done   chan struct{}
	once   sync.Once
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Events returns the delivery channel. It is never closed; select on Done.
func (s *Subscription) Events() <-chan event.Event { return s.events }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s)
	})
}

// Subscribe registers a subscription on topic. Subscribing to a closed hub
// returns an already-closed subscription.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic:  strings.TrimSpace(topic),
		hub:    h,
		events: make(chan event.Event, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.once.Do(func() { close(sub.done) })
		return sub
	}
	subs, ok := h.topics[sub.topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[sub.topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish implements event.Sink. A subscriber whose buffer stays full until
// ctx ends is evicted: its subscription is closed so the device reconnects
// and catches up from stored progress. The other subscribers still receive
// the events.
func (h *Hub) Publish(ctx context.Context, topic string, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	topic = strings.TrimSpace(topic)
	evicted := 0
	for _, sub := range h.snapshot(topic) {
		if err := sub.deliver(ctx, events); err != nil {
			sub.Close()
			evicted++
		}
	}
	if evicted > 0 {
		return fmt.Errorf("evicted %d slow subscribers on %s: %w", evicted, topic, ctx.Err())
	}
	return nil
}

func (s *Subscription) deliver(ctx context.Context, events []event.Event) error {
	for _, evt := range events {
		select {
		case s.events <- evt:
			continue
		case <-s.done:
			return nil
		default:
		}
		select {
		case s.events <- evt:
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribers reports the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[strings.TrimSpace(topic)])
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	for _, subs := range h.topics {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

func (h *Hub) snapshot(topic string) []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[topic]
	out := make([]*Subscription, 0, len(subs))
	for sub := range subs {
		out = append(out, sub)
	}
	return out
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
}

var _ event.Sink = (*Hub)(nil)
