// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package job

import (
	"sync"
	"time"

	"github.com/ManuGH/condense/internal/artifact"
)

// EventType classifies controller events.
type EventType string

const (
	EventStatus        EventType = "status"
	EventProgress      EventType = "progress"
	EventLog           EventType = "log"
	EventCompleted     EventType = "completed"
	EventFailed        EventType = "failed"
	EventRecoveryError EventType = "recovery_failed"
)

// Event is delivered to subscribers.
type Event struct {
	Type     EventType          `json:"type"`
	Time     time.Time          `json:"time"`
	JobID    string             `json:"job_id,omitempty"`
	Status   Status             `json:"status,omitempty"`
	Progress int                `json:"progress"`
	Message  string             `json:"message,omitempty"`
	Error    string             `json:"error,omitempty"`
	Artifact *artifact.Artifact `json:"artifact,omitempty"`
}

// Subscription receives controller events until Close.
// Events are dropped for subscribers that do not keep up.
type Subscription struct {
	ch      chan Event
	hub     *hub
	once    sync.Once
	dropped uint64
}

// Events returns the receive channel. It is closed by Close.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped reports how many events were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		delete(s.hub.subs, s)
		close(s.ch)
	})
}

type hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[*Subscription]struct{})}
}

func (h *hub) subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{ch: make(chan Event, buffer), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// publish never blocks.
func (h *hub) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped++
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.closed = true
	h.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}
