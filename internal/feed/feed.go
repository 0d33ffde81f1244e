package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// DefaultQueueCapacity is the per-subscriber queue size used when none is configured
const DefaultQueueCapacity = 64

// ErrFeedClosed is returned by Publish and Subscribe after Close
var ErrFeedClosed = errors.New("change feed is closed")

// Feed is an in-process publish/subscribe bus for complaint change events.
// It keeps no history: a subscriber only sees events published after it
// subscribed.
type Feed struct {
	mu       sync.RWMutex
	subs     map[string]*Subscription
	closed   bool
	capacity int
	logger   logger.Logger
}

// New creates a feed whose subscriptions hold up to capacity pending events
func New(capacity int, log logger.Logger) *Feed {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Feed{
		subs:     make(map[string]*Subscription),
		capacity: capacity,
		logger:   log.WithFields(map[string]interface{}{"component": "change_feed"}),
	}
}

// Subscribe registers a new subscriber
func (f *Feed) Subscribe(filter Filter) (*Subscription, error) {
	sub := newSubscription(uuid.NewString(), filter, f.capacity)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFeedClosed
	}
	f.subs[sub.id] = sub
	count := len(f.subs)
	f.mu.Unlock()

	f.logger.Debug(context.Background(), "Subscriber attached", map[string]interface{}{
		"subscriber_id": sub.id,
		"filter":        filter.String(),
		"subscribers":   count,
	})
	return sub, nil
}

// Unsubscribe removes sub and discards its queue. Calling it more than once is safe.
func (f *Feed) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	f.mu.Lock()
	if cur, ok := f.subs[sub.id]; ok && cur == sub {
		delete(f.subs, sub.id)
	}
	f.mu.Unlock()

	if sub.close() {
		f.logger.Debug(context.Background(), "Subscriber detached", map[string]interface{}{
			"subscriber_id": sub.id,
			"dropped":       sub.Dropped(),
		})
	}
}

// Publish enqueues evt on every matching subscription without blocking.
// Subscriptions closed concurrently are skipped silently.
func (f *Feed) Publish(ctx context.Context, evt domain.ChangeEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrFeedClosed
	}

	for _, sub := range f.subs {
		if !sub.filter.Matches(evt) {
			continue
		}
		if sub.enqueue(evt) {
			f.logger.Debug(ctx, "Subscriber queue full, dropped oldest event", map[string]interface{}{
				"subscriber_id": sub.id,
				"complaint_id":  evt.ComplaintID,
				"dropped":       sub.Dropped(),
			})
		}
	}
	return nil
}

// Len returns the number of live subscriptions
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Closed reports whether Close has been called
func (f *Feed) Closed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

// Close shuts the feed down and closes every subscription
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = make(map[string]*Subscription)
	f.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
