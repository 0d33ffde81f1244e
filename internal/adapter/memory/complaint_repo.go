package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// ComplaintRepository is an in-process store. Writes to one complaint are
// serialised by a per-record mutex; the index lock is only held to look a
// record up or insert one, so distinct ids never contend on a write.
type ComplaintRepository struct {
	mu      sync.RWMutex
	records map[string]*record
	now     func() time.Time
}

type record struct {
	mu        sync.Mutex
	complaint *domain.Complaint
}

// NewComplaintRepository creates an empty store
func NewComplaintRepository() *ComplaintRepository {
	return &ComplaintRepository{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// WithClock replaces the clock used to stamp mutations. Used in tests.
func (r *ComplaintRepository) WithClock(now func() time.Time) *ComplaintRepository {
	r.now = now
	return r
}

func (r *ComplaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateContent(complaint.Title, complaint.Description); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[complaint.ID]; exists {
		return fmt.Errorf("complaint %s already exists", complaint.ID)
	}
	r.records[complaint.ID] = &record{complaint: complaint.Clone()}
	return nil
}

func (r *ComplaintRepository) lookup(id string) (*record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*domain.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := r.lookup(id)
	if !ok {
		return nil, domain.ErrComplaintNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.complaint.Clone(), nil
}

func (r *ComplaintRepository) List(ctx context.Context, filter domain.ComplaintFilter) ([]*domain.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	records := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	r.mu.RUnlock()

	complaints := make([]*domain.Complaint, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		c := rec.complaint.Clone()
		rec.mu.Unlock()

		if filter.Matches(c) {
			complaints = append(complaints, c)
		}
	}

	sort.Slice(complaints, func(i, j int) bool {
		a, b := complaints[i], complaints[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return complaints, nil
}

func (r *ComplaintRepository) ApplyMutation(ctx context.Context, id string, m domain.Mutation) (*domain.Complaint, *domain.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	rec, ok := r.lookup(id)
	if !ok {
		return nil, nil, domain.ErrComplaintNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	before := rec.complaint
	after := before.Apply(m, r.now())
	rec.complaint = after

	return before.Clone(), after.Clone(), nil
}

func (r *ComplaintRepository) CountByStatus(ctx context.Context, filter domain.ComplaintFilter) (domain.StatusCounts, error) {
	filter.Status = nil
	complaints, err := r.List(ctx, filter)
	if err != nil {
		return domain.StatusCounts{}, err
	}

	var counts domain.StatusCounts
	for _, c := range complaints {
		counts.Add(c.Status, 1)
	}
	return counts, nil
}
