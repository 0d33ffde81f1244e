package ports

import (
	"context"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// EventPublisher fans change events out to live subscribers
type EventPublisher interface {
	// Publish delivers evt to every subscriber entitled to see it.
	// It never blocks on a slow subscriber.
	Publish(ctx context.Context, evt domain.ChangeEvent) error
}
