package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/internal/domain"
	"github.com/complaintdesk/complaintdesk/internal/feed"
	"github.com/complaintdesk/complaintdesk/internal/ports"
)

// CreateComplaintRequest represents the request to create a complaint
type CreateComplaintRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageRef    *string `json:"image_ref,omitempty"`
}

// UpdateComplaintRequest represents a reviewer edit. Absent fields are left untouched.
type UpdateComplaintRequest struct {
	Status   *domain.ComplaintStatus `json:"status,omitempty"`
	Response *string                 `json:"response,omitempty"`
}

// ListComplaintsResponse represents a scoped complaint listing
type ListComplaintsResponse struct {
	Complaints []*domain.Complaint `json:"complaints"`
	Total      int                 `json:"total"`
}

// ComplaintUseCase is the lifecycle engine: it authorizes every request,
// applies it to the store and announces successful mutations.
type ComplaintUseCase struct {
	repo      ports.ComplaintRepository
	publisher ports.EventPublisher
	changes   *feed.Feed
	policy    domain.AccessPolicy
	logger    logger.Logger
	now       func() time.Time
}

// NewComplaintUseCase creates a new complaint use case. Events are published
// through publisher; sessions subscribe on changes. Without a relay both are
// the same feed.
func NewComplaintUseCase(
	repo ports.ComplaintRepository,
	publisher ports.EventPublisher,
	changes *feed.Feed,
	log logger.Logger,
) *ComplaintUseCase {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ComplaintUseCase{
		repo:      repo,
		publisher: publisher,
		changes:   changes,
		logger:    log.WithFields(map[string]interface{}{"component": "complaint_usecase"}),
		now:       time.Now,
	}
}

// CreateComplaint files a new pending complaint owned by the subject.
// No change event is published for creation.
func (uc *ComplaintUseCase) CreateComplaint(ctx context.Context, subject domain.Subject, req CreateComplaintRequest) (*domain.Complaint, error) {
	if !uc.policy.CanCreate(subject) {
		return nil, domain.ErrAccessDenied
	}

	complaint, err := domain.NewComplaint(domain.NewComplaintInput{
		OwnerID:     subject.ID,
		Title:       req.Title,
		Description: req.Description,
		ImageRef:    req.ImageRef,
	}, uc.now())
	if err != nil {
		return nil, err
	}

	if err := uc.repo.Create(ctx, complaint); err != nil {
		return nil, fmt.Errorf("failed to create complaint: %w", err)
	}

	uc.logger.Info(ctx, "Complaint created", map[string]interface{}{
		"complaint_id": complaint.ID,
		"owner_id":     complaint.OwnerID,
	})
	return complaint, nil
}

// GetComplaint returns one complaint if the subject may read it
func (uc *ComplaintUseCase) GetComplaint(ctx context.Context, subject domain.Subject, id string) (*domain.Complaint, error) {
	complaint, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	if !uc.policy.CanRead(subject, complaint) {
		return nil, domain.ErrAccessDenied
	}
	return complaint, nil
}

// ListComplaints returns the complaints visible to the subject, newest first,
// optionally narrowed to one status.
func (uc *ComplaintUseCase) ListComplaints(ctx context.Context, subject domain.Subject, status *domain.ComplaintStatus) (*ListComplaintsResponse, error) {
	filter, ok := uc.policy.ListScope(subject)
	if !ok {
		return nil, domain.ErrAccessDenied
	}
	if status != nil {
		if !status.IsValid() {
			return nil, domain.NewValidationError("invalid status: " + string(*status))
		}
		filter.Status = status
	}

	complaints, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	if complaints == nil {
		complaints = []*domain.Complaint{}
	}

	return &ListComplaintsResponse{
		Complaints: complaints,
		Total:      len(complaints),
	}, nil
}

// Stats returns per-status totals over the complaints visible to the subject
func (uc *ComplaintUseCase) Stats(ctx context.Context, subject domain.Subject) (domain.StatusCounts, error) {
	filter, ok := uc.policy.ListScope(subject)
	if !ok {
		return domain.StatusCounts{}, domain.ErrAccessDenied
	}

	counts, err := uc.repo.CountByStatus(ctx, filter)
	if err != nil {
		return domain.StatusCounts{}, fmt.Errorf("failed to count complaints: %w", err)
	}
	return counts, nil
}

// UpdateComplaint applies a reviewer edit and publishes the resulting change.
// Checks run in a fixed order: existence, status permission, response
// permission, then field validation. A publish failure is logged and does
// not fail the update.
func (uc *ComplaintUseCase) UpdateComplaint(ctx context.Context, subject domain.Subject, id string, req UpdateComplaintRequest) (*domain.Complaint, error) {
	start := time.Now()
	if _, err := uc.repo.FindByID(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to load complaint: %w", err)
	}

	if req.Status != nil && !uc.policy.CanMutateStatus(subject) {
		return nil, domain.ErrAccessDenied
	}
	if req.Response != nil && !uc.policy.CanMutateResponse(subject) {
		return nil, domain.ErrAccessDenied
	}

	mutation := domain.Mutation{Status: req.Status, Response: req.Response}
	if err := mutation.Validate(); err != nil {
		return nil, err
	}

	before, after, err := uc.repo.ApplyMutation(ctx, id, mutation)
	if err != nil {
		return nil, fmt.Errorf("failed to update complaint: %w", err)
	}

	evt := domain.NewChangeEvent(before, after, mutation)
	fields := map[string]interface{}{
		"complaint_id":    evt.ComplaintID,
		"reviewer_id":     subject.ID,
		"previous_status": string(evt.PreviousStatus),
		"new_status":      string(evt.NewStatus),
	}
	if err := uc.publisher.Publish(ctx, evt); err != nil {
		uc.logger.Error(ctx, "Failed to publish complaint change", err, fields)
	}

	uc.logger.Info(ctx, "Complaint updated", fields)
	logger.LogPerformance(ctx, uc.logger, "complaint.update", time.Since(start), map[string]interface{}{
		"complaint_id": evt.ComplaintID,
	})
	return after, nil
}

// Subscribe opens a live change subscription scoped to what the subject may read
func (uc *ComplaintUseCase) Subscribe(ctx context.Context, subject domain.Subject) (*feed.Subscription, error) {
	filter, err := feed.FilterFor(subject)
	if err != nil {
		return nil, err
	}
	sub, err := uc.changes.Subscribe(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	uc.logger.Debug(ctx, "Change subscription opened", map[string]interface{}{
		"subscriber_id": sub.ID(),
		"user_id":       subject.ID,
	})
	return sub, nil
}

// Unsubscribe closes a subscription returned by Subscribe. Idempotent.
func (uc *ComplaintUseCase) Unsubscribe(sub *feed.Subscription) {
	uc.changes.Unsubscribe(sub)
}

// Feed exposes the feed sessions attach to
func (uc *ComplaintUseCase) Feed() *feed.Feed {
	return uc.changes
}
