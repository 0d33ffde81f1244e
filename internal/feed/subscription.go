package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// ErrSubscriptionClosed is returned by Next once the subscription is closed
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is one subscriber's bounded delivery queue.
// When the queue is full the oldest pending event is dropped.
type Subscription struct {
	id     string
	filter Filter

	mu      sync.Mutex
	buf     []domain.ChangeEvent
	head    int
	size    int
	dropped uint64
	closed  bool

	notify chan struct{}
	done   chan struct{}
}

func newSubscription(id string, filter Filter, capacity int) *Subscription {
	return &Subscription{
		id:     id,
		filter: filter,
		buf:    make([]domain.ChangeEvent, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *Subscription) ID() string     { return s.id }
func (s *Subscription) Filter() Filter { return s.filter }

// Done is closed when the subscription is closed
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped returns how many events were discarded to make room for newer ones
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Len returns the number of pending events
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// enqueue never blocks. It reports whether an older event was dropped.
// Enqueueing to a closed subscription is a no-op.
func (s *Subscription) enqueue(evt domain.ChangeEvent) (dropped bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	capacity := len(s.buf)
	if s.size == capacity {
		s.buf[s.head] = domain.ChangeEvent{}
		s.head = (s.head + 1) % capacity
		s.size--
		s.dropped++
		dropped = true
	}
	s.buf[(s.head+s.size)%capacity] = evt
	s.size++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

// TryNext pops the oldest pending event without waiting
func (s *Subscription) TryNext() (domain.ChangeEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked()
}

func (s *Subscription) popLocked() (domain.ChangeEvent, bool) {
	if s.size == 0 {
		return domain.ChangeEvent{}, false
	}
	evt := s.buf[s.head]
	s.buf[s.head] = domain.ChangeEvent{}
	s.head = (s.head + 1) % len(s.buf)
	s.size--
	return evt, true
}

// Next blocks until an event is available, the subscription is closed or
// ctx is done. Pending events are discarded on close.
func (s *Subscription) Next(ctx context.Context) (domain.ChangeEvent, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return domain.ChangeEvent{}, ErrSubscriptionClosed
		}
		if evt, ok := s.popLocked(); ok {
			s.mu.Unlock()
			return evt, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.ChangeEvent{}, ctx.Err()
		case <-s.done:
		case <-s.notify:
		}
	}
}

// close marks the subscription closed and releases its queue.
// It reports false if it was already closed.
func (s *Subscription) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.buf = nil
	s.head, s.size = 0, 0
	close(s.done)
	return true
}
