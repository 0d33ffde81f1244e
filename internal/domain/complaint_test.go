package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func statusPtr(s ComplaintStatus) *ComplaintStatus { return &s }

func TestNewComplaint(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	complaint, err := NewComplaint(NewComplaintInput{
		OwnerID:     "u1",
		Title:       "Leaky faucet",
		Description: "The faucet in room 204 drips all night",
		ImageRef:    strPtr("complaint-images/u1/faucet.jpg"),
	}, now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if complaint.ID == "" {
		t.Error("Expected an id to be assigned")
	}
	if complaint.Status != ComplaintStatusPending {
		t.Errorf("Expected status %s, got %s", ComplaintStatusPending, complaint.Status)
	}
	if complaint.Response != nil {
		t.Errorf("Expected no response, got %q", *complaint.Response)
	}
	if complaint.ImageRef == nil || *complaint.ImageRef != "complaint-images/u1/faucet.jpg" {
		t.Errorf("Expected image ref to be stored verbatim, got %v", complaint.ImageRef)
	}
	if !complaint.CreatedAt.Equal(complaint.UpdatedAt) {
		t.Errorf("Expected createdAt == updatedAt, got %v and %v", complaint.CreatedAt, complaint.UpdatedAt)
	}
	if complaint.CreatedAt.Nanosecond()%1000 != 0 {
		t.Errorf("Expected microsecond precision, got %v", complaint.CreatedAt)
	}
}

func TestNewComplaint_UniqueIDs(t *testing.T) {
	in := NewComplaintInput{OwnerID: "u1", Title: "t", Description: "d"}
	a, _ := NewComplaint(in, time.Now())
	b, _ := NewComplaint(in, time.Now())
	if a.ID == b.ID {
		t.Errorf("Expected distinct ids, got %s twice", a.ID)
	}
}

func TestNewComplaint_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input NewComplaintInput
	}{
		{"empty title", NewComplaintInput{OwnerID: "u1", Title: "  ", Description: "d"}},
		{"empty description", NewComplaintInput{OwnerID: "u1", Title: "t", Description: ""}},
		{"title too long", NewComplaintInput{OwnerID: "u1", Title: strings.Repeat("a", 201), Description: "d"}},
		{"description too long", NewComplaintInput{OwnerID: "u1", Title: "t", Description: strings.Repeat("a", 2001)}},
		{"missing owner", NewComplaintInput{Title: "t", Description: "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewComplaint(tt.input, time.Now())
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestValidateContent_CountsCharactersNotBytes(t *testing.T) {
	title := strings.Repeat("é", 200)
	if err := ValidateContent(title, "d"); err != nil {
		t.Errorf("Expected 200 two-byte characters to be accepted, got %v", err)
	}
}

func TestComplaint_Apply(t *testing.T) {
	base, _ := NewComplaint(NewComplaintInput{OwnerID: "u1", Title: "t", Description: "d"}, time.Now())

	updated := base.Apply(Mutation{Status: statusPtr(ComplaintStatusResolved), Response: strPtr("Fixed")}, base.UpdatedAt)

	if updated.Status != ComplaintStatusResolved {
		t.Errorf("Expected status %s, got %s", ComplaintStatusResolved, updated.Status)
	}
	if updated.Response == nil || *updated.Response != "Fixed" {
		t.Errorf("Expected response Fixed, got %v", updated.Response)
	}
	if !updated.UpdatedAt.After(base.UpdatedAt) {
		t.Errorf("Expected updatedAt to advance even with a stale clock, got %v <= %v", updated.UpdatedAt, base.UpdatedAt)
	}
	if base.Status != ComplaintStatusPending || base.Response != nil {
		t.Error("Expected the original complaint to be left untouched")
	}
	if updated.OwnerID != base.OwnerID || updated.CreatedAt != base.CreatedAt {
		t.Error("Expected immutable fields to be preserved")
	}
}

func TestComplaint_ApplyBlankResponseClears(t *testing.T) {
	base, _ := NewComplaint(NewComplaintInput{OwnerID: "u1", Title: "t", Description: "d"}, time.Now())
	withResponse := base.Apply(Mutation{Response: strPtr("On it")}, time.Now())

	cleared := withResponse.Apply(Mutation{Response: strPtr("   ")}, time.Now())
	if cleared.Response != nil {
		t.Errorf("Expected response to be cleared, got %q", *cleared.Response)
	}
	if cleared.Status != ComplaintStatusPending {
		t.Errorf("Expected status untouched, got %s", cleared.Status)
	}
}

func TestMutation_Validate(t *testing.T) {
	if err := (Mutation{}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected empty mutation to be rejected, got %v", err)
	}
	if err := (Mutation{Status: statusPtr("closed")}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected unknown status to be rejected, got %v", err)
	}
	if err := (Mutation{Response: strPtr(strings.Repeat("x", 2001))}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected oversized response to be rejected, got %v", err)
	}
	if err := (Mutation{Status: statusPtr(ComplaintStatusPending)}).Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestComplaintFilter_Matches(t *testing.T) {
	c := &Complaint{OwnerID: "u1", Status: ComplaintStatusInProgress}

	if !(ComplaintFilter{}).Matches(c) {
		t.Error("Expected empty filter to match")
	}
	if !(ComplaintFilter{OwnerID: strPtr("u1")}).Matches(c) {
		t.Error("Expected owner filter to match")
	}
	if (ComplaintFilter{OwnerID: strPtr("u2")}).Matches(c) {
		t.Error("Expected other owner to be filtered out")
	}
	if (ComplaintFilter{Status: statusPtr(ComplaintStatusResolved)}).Matches(c) {
		t.Error("Expected other status to be filtered out")
	}
}

func TestStatusCounts_Add(t *testing.T) {
	var counts StatusCounts
	counts.Add(ComplaintStatusPending, 2)
	counts.Add(ComplaintStatusResolved, 1)
	counts.Add("bogus", 5)

	if counts.Total != 3 || counts.Pending != 2 || counts.Resolved != 1 || counts.InProgress != 0 {
		t.Errorf("Unexpected counts: %+v", counts)
	}
}

func TestDomainError_Is(t *testing.T) {
	err := NewValidationError("title is required")
	if !errors.Is(err, ErrValidation) {
		t.Error("Expected custom validation error to match ErrValidation")
	}
	if errors.Is(err, ErrComplaintNotFound) {
		t.Error("Expected validation error not to match ErrComplaintNotFound")
	}
}
