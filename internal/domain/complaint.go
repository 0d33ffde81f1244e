package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ComplaintStatus represents the review status of a complaint
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "pending"
	ComplaintStatusInProgress ComplaintStatus = "in_progress"
	ComplaintStatusResolved   ComplaintStatus = "resolved"
)

// Content bounds re-asserted by every store.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxResponseLength    = 2000
)

// AllStatuses lists the statuses in dashboard order.
var AllStatuses = []ComplaintStatus{
	ComplaintStatusPending,
	ComplaintStatusInProgress,
	ComplaintStatusResolved,
}

// IsValid reports whether s is one of the known statuses
func (s ComplaintStatus) IsValid() bool {
	switch s {
	case ComplaintStatusPending, ComplaintStatusInProgress, ComplaintStatusResolved:
		return true
	}
	return false
}

// Complaint represents a trouble report raised by a submitter
type Complaint struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ImageRef    *string         `json:"image_ref,omitempty"`
	Status      ComplaintStatus `json:"status"`
	Response    *string         `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewComplaintInput carries the submitter-supplied fields of a new complaint
type NewComplaintInput struct {
	OwnerID     string
	Title       string
	Description string
	ImageRef    *string
}

// NewComplaint validates the input and builds a pending complaint with a fresh id.
func NewComplaint(in NewComplaintInput, now time.Time) (*Complaint, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, NewValidationError("owner id is required")
	}
	if err := ValidateContent(in.Title, in.Description); err != nil {
		return nil, err
	}

	var imageRef *string
	if in.ImageRef != nil && strings.TrimSpace(*in.ImageRef) != "" {
		ref := *in.ImageRef
		imageRef = &ref
	}

	ts := Timestamp(now)
	return &Complaint{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		Title:       in.Title,
		Description: in.Description,
		ImageRef:    imageRef,
		Status:      ComplaintStatusPending,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// ValidateContent checks title and description bounds
func ValidateContent(title, description string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return NewValidationError("title must not exceed 200 characters")
	}
	if strings.TrimSpace(description) == "" {
		return NewValidationError("description is required")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return NewValidationError("description must not exceed 2000 characters")
	}
	return nil
}

// Mutation describes a reviewer edit. Nil fields are left untouched.
// A Response pointing at an empty string clears the response.
type Mutation struct {
	Status   *ComplaintStatus
	Response *string
}

// IsEmpty reports whether the mutation carries no field at all
func (m Mutation) IsEmpty() bool {
	return m.Status == nil && m.Response == nil
}

// Validate checks the supplied fields
func (m Mutation) Validate() error {
	if m.IsEmpty() {
		return ErrEmptyUpdate
	}
	if m.Status != nil && !m.Status.IsValid() {
		return NewValidationError("invalid status: " + string(*m.Status))
	}
	if m.Response != nil && utf8.RuneCountInString(*m.Response) > MaxResponseLength {
		return NewValidationError("response must not exceed 2000 characters")
	}
	return nil
}

// Apply returns a copy of c with the mutation applied and UpdatedAt advanced.
func (c *Complaint) Apply(m Mutation, now time.Time) *Complaint {
	next := c.Clone()
	if m.Status != nil {
		next.Status = *m.Status
	}
	if m.Response != nil {
		if strings.TrimSpace(*m.Response) == "" {
			next.Response = nil
		} else {
			resp := *m.Response
			next.Response = &resp
		}
	}
	next.UpdatedAt = NextUpdatedAt(c.UpdatedAt, now)
	return next
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	if c.ImageRef != nil {
		ref := *c.ImageRef
		out.ImageRef = &ref
	}
	if c.Response != nil {
		resp := *c.Response
		out.Response = &resp
	}
	return &out
}

// Timestamp normalises t to the precision PostgreSQL keeps.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NextUpdatedAt returns a timestamp strictly after prev.
func NextUpdatedAt(prev, now time.Time) time.Time {
	ts := Timestamp(now)
	if !ts.After(prev) {
		ts = prev.Add(time.Microsecond)
	}
	return ts
}

// ComplaintFilter represents filters for listing complaints
type ComplaintFilter struct {
	OwnerID *string          `json:"owner_id,omitempty"`
	Status  *ComplaintStatus `json:"status,omitempty"`
}

// Matches reports whether c passes the filter
func (f ComplaintFilter) Matches(c *Complaint) bool {
	if f.OwnerID != nil && c.OwnerID != *f.OwnerID {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	return true
}

// StatusCounts holds per-status totals of a complaint listing
type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// Add records n complaints with the given status
func (s *StatusCounts) Add(status ComplaintStatus, n int) {
	switch status {
	case ComplaintStatusPending:
		s.Pending += n
	case ComplaintStatusInProgress:
		s.InProgress += n
	case ComplaintStatusResolved:
		s.Resolved += n
	default:
		return
	}
	s.Total += n
}
