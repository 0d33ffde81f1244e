package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

func seed(t *testing.T, repo *ComplaintRepository, owner, title string, at time.Time) *domain.Complaint {
	t.Helper()
	c, err := domain.NewComplaint(domain.NewComplaintInput{OwnerID: owner, Title: title, Description: "details"}, at)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestComplaintRepository_CreateAndFind(t *testing.T) {
	repo := NewComplaintRepository()
	c := seed(t, repo, "u1", "Broken light", time.Now())

	got, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	got.Title = "mutated by caller"
	again, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broken light", again.Title)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrComplaintNotFound)
}

func TestComplaintRepository_CreateRevalidates(t *testing.T) {
	repo := NewComplaintRepository()
	err := repo.Create(context.Background(), &domain.Complaint{ID: "c1", OwnerID: "u1", Title: " ", Description: "d"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestComplaintRepository_ListNewestFirst(t *testing.T) {
	repo := NewComplaintRepository()
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	oldest := seed(t, repo, "u1", "first", base)
	middle := seed(t, repo, "u2", "second", base.Add(time.Minute))
	newest := seed(t, repo, "u1", "third", base.Add(2*time.Minute))

	all, err := repo.List(context.Background(), domain.ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	owner := "u1"
	mine, err := repo.List(context.Background(), domain.ComplaintFilter{OwnerID: &owner})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, newest.ID, mine[0].ID)
	assert.Equal(t, oldest.ID, mine[1].ID)
}

func TestComplaintRepository_ListTiesBrokenByID(t *testing.T) {
	repo := NewComplaintRepository()
	at := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	a := seed(t, repo, "u1", "a", at)
	b := seed(t, repo, "u1", "b", at)

	list, err := repo.List(context.Background(), domain.ComplaintFilter{})
	require.NoError(t, err)

	first, second := a.ID, b.ID
	if second > first {
		first, second = second, first
	}
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)
}

func TestComplaintRepository_ApplyMutation(t *testing.T) {
	frozen := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	repo := NewComplaintRepository().WithClock(func() time.Time { return frozen })
	c := seed(t, repo, "u1", "Door jammed", frozen)

	resolved := domain.ComplaintStatusResolved
	response := "Fixed"
	before, after, err := repo.ApplyMutation(context.Background(), c.ID, domain.Mutation{Status: &resolved, Response: &response})
	require.NoError(t, err)

	assert.Equal(t, domain.ComplaintStatusPending, before.Status)
	assert.Nil(t, before.Response)
	assert.Equal(t, domain.ComplaintStatusResolved, after.Status)
	require.NotNil(t, after.Response)
	assert.Equal(t, "Fixed", *after.Response)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt), "updatedAt must strictly increase under a frozen clock")

	stored, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, after, stored)

	_, _, err = repo.ApplyMutation(context.Background(), "missing", domain.Mutation{Status: &resolved})
	assert.ErrorIs(t, err, domain.ErrComplaintNotFound)

	_, _, err = repo.ApplyMutation(context.Background(), c.ID, domain.Mutation{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// Concurrent reviewers on one complaint: each mutation sees the state the
// previous one wrote, so the before/after pairs form a single chain.
func TestComplaintRepository_ApplyMutationSerialisesPerID(t *testing.T) {
	repo := NewComplaintRepository()
	c := seed(t, repo, "u1", "Heating", time.Now())

	const writers = 50
	type pair struct{ before, after *domain.Complaint }
	results := make(chan pair, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := fmt.Sprintf("note %d", i)
			before, after, err := repo.ApplyMutation(context.Background(), c.ID, domain.Mutation{Response: &resp})
			if assert.NoError(t, err) {
				results <- pair{before, after}
			}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[time.Time]bool)
	byBefore := make(map[time.Time]*domain.Complaint)
	for p := range results {
		assert.False(t, seen[p.after.UpdatedAt], "two writers produced the same updatedAt")
		seen[p.after.UpdatedAt] = true
		byBefore[p.before.UpdatedAt] = p.after
	}
	assert.Len(t, byBefore, writers, "every writer must observe a distinct predecessor")

	final, err := repo.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, seen[final.UpdatedAt])
}

func TestComplaintRepository_CountByStatus(t *testing.T) {
	repo := NewComplaintRepository()
	a := seed(t, repo, "u1", "a", time.Now())
	seed(t, repo, "u1", "b", time.Now())
	seed(t, repo, "u2", "c", time.Now())

	resolved := domain.ComplaintStatusResolved
	_, _, err := repo.ApplyMutation(context.Background(), a.ID, domain.Mutation{Status: &resolved})
	require.NoError(t, err)

	owner := "u1"
	counts, err := repo.CountByStatus(context.Background(), domain.ComplaintFilter{OwnerID: &owner, Status: &resolved})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCounts{Total: 2, Pending: 1, Resolved: 1}, counts)

	all, err := repo.CountByStatus(context.Background(), domain.ComplaintFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
}

func TestComplaintRepository_RespectsCancelledContext(t *testing.T) {
	repo := NewComplaintRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.List(ctx, domain.ComplaintFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
