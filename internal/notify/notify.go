// SPDX-License-Identifier: LGPL-2.1-only

// Package notify defines the event-notification/stream-retention
// collaborator the core engine treats as out of scope. create-subscription
// calls out to it; the core holds no retention state of its own.
package notify

import (
	"fmt"
	"sync"
	"time"
)

// Sink accepts subscriptions and emits framed notification events: the
// notification streams emit <notification> messages framed identically to
// RPC replies.
type Sink interface {
	Subscribe(sessionID, stream, filter string) error
	Unsubscribe(sessionID string)
}

// Event is one notification payload, carrying its `<eventTime>`.
type Event struct {
	Stream string
	Time   time.Time
	Body   string
}

// MemorySink is a minimal in-process reference Sink: it tracks
// subscriptions and fans out Publish calls to each matching subscriber's
// channel. A production deployment would back Sink with the real
// notification/stream-retention subsystem this package stands in for.
type MemorySink struct {
	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	stream string
	filter string
	ch     chan Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{subs: make(map[string]subscription)}
}

func (m *MemorySink) Subscribe(sessionID, stream, filter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stream == "" {
		return fmt.Errorf("stream name is required")
	}
	m.subs[sessionID] = subscription{stream: stream, filter: filter, ch: make(chan Event, 16)}
	return nil
}

func (m *MemorySink) Unsubscribe(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[sessionID]; ok {
		close(s.ch)
		delete(m.subs, sessionID)
	}
}

// Publish fans ev out to every session subscribed to ev.Stream. Channels
// are buffered and non-blocking: a slow subscriber drops events rather than
// stalling the publisher; retention semantics are out of scope for this
// engine.
func (m *MemorySink) Publish(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.stream != ev.Stream {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Events returns the channel for sessionID's subscription, or nil if none.
func (m *MemorySink) Events(sessionID string) <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[sessionID]; ok {
		return s.ch
	}
	return nil
}
