package ports

import (
	"context"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// ComplaintRepository defines the interface for complaint persistence.
// Implementations return copies; callers may not mutate stored state
// through a returned value.
type ComplaintRepository interface {
	// Create stores a validated, freshly built complaint
	Create(ctx context.Context, complaint *domain.Complaint) error

	// FindByID retrieves a complaint by its ID, or domain.ErrComplaintNotFound
	FindByID(ctx context.Context, id string) (*domain.Complaint, error)

	// List returns complaints matching the filter, newest first.
	// Ties on created_at are broken by id descending.
	List(ctx context.Context, filter domain.ComplaintFilter) ([]*domain.Complaint, error)

	// ApplyMutation applies m atomically and returns the state it replaced
	// together with the state it wrote. Concurrent mutations of the same
	// complaint are serialised.
	ApplyMutation(ctx context.Context, id string, m domain.Mutation) (before, after *domain.Complaint, err error)

	// CountByStatus returns per-status totals for complaints matching the filter.
	// The filter's Status field is ignored.
	CountByStatus(ctx context.Context, filter domain.ComplaintFilter) (domain.StatusCounts, error)
}
