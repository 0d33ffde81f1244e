package domain

import "time"

// ChangeEvent is the immutable before/after record of one successful mutation.
// Response fields are only set when the mutation carried a response.
type ChangeEvent struct {
	ComplaintID      string          `json:"complaint_id"`
	OwnerID          string          `json:"owner_id"`
	PreviousStatus   ComplaintStatus `json:"previous_status"`
	NewStatus        ComplaintStatus `json:"new_status"`
	ResponseChanged  bool            `json:"response_changed"`
	PreviousResponse *string         `json:"previous_response,omitempty"`
	NewResponse      *string         `json:"new_response,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

// NewChangeEvent derives the event for a mutation from the state the store
// replaced and the state it wrote.
func NewChangeEvent(before, after *Complaint, m Mutation) ChangeEvent {
	evt := ChangeEvent{
		ComplaintID:    after.ID,
		OwnerID:        after.OwnerID,
		PreviousStatus: before.Status,
		NewStatus:      after.Status,
		Timestamp:      after.UpdatedAt,
	}
	if m.Response != nil {
		evt.ResponseChanged = true
		evt.PreviousResponse = copyString(before.Response)
		evt.NewResponse = copyString(after.Response)
	}
	return evt
}

// StatusChanged reports whether the event moved the complaint to another status
func (e ChangeEvent) StatusChanged() bool {
	return e.PreviousStatus != e.NewStatus
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ComplaintView is the client-side projection kept up to date from events
type ComplaintView struct {
	ComplaintID string          `json:"complaint_id"`
	Status      ComplaintStatus `json:"status"`
	Response    *string         `json:"response,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Snapshot is a consumer's view of complaints, updated by upserting events
// keyed by complaint id. Events older than the stored view are ignored, so
// redelivery and out-of-order duplicates leave the snapshot unchanged.
type Snapshot map[string]ComplaintView

// Seed loads the state fetched by a list call, typically after (re)connecting.
func (s Snapshot) Seed(complaints []*Complaint) {
	for _, c := range complaints {
		s[c.ID] = ComplaintView{
			ComplaintID: c.ID,
			Status:      c.Status,
			Response:    copyString(c.Response),
			UpdatedAt:   c.UpdatedAt,
		}
	}
}

// Apply upserts evt and reports whether the snapshot changed.
func (s Snapshot) Apply(evt ChangeEvent) bool {
	cur, ok := s[evt.ComplaintID]
	if ok && !evt.Timestamp.After(cur.UpdatedAt) {
		return false
	}
	next := ComplaintView{
		ComplaintID: evt.ComplaintID,
		Status:      evt.NewStatus,
		Response:    cur.Response,
		UpdatedAt:   evt.Timestamp,
	}
	if evt.ResponseChanged {
		next.Response = copyString(evt.NewResponse)
	}
	s[evt.ComplaintID] = next
	return true
}
