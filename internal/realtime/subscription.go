package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is one live listener on a trip's events.
type Subscription struct {
	ID     string
	TripID uuid.UUID
	UserID uuid.UUID

	hub    *Hub
	events chan Event
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// Events returns the delivery channel. It is never closed; select on Done as well.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed once the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.done)
		s.mu.Unlock()
		s.hub.unregister(s)
	})
}

// deliver enqueues msg without blocking. It reports false when the buffer is full.
func (s *Subscription) deliver(msg Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- msg:
		return true
	default:
		return false
	}
}
