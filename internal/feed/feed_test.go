package feed

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

func event(id, owner string, status domain.ComplaintStatus) domain.ChangeEvent {
	return domain.ChangeEvent{
		ComplaintID:    id,
		OwnerID:        owner,
		PreviousStatus: domain.ComplaintStatusPending,
		NewStatus:      status,
		Timestamp:      time.Now().UTC(),
	}
}

func drain(sub *Subscription) []domain.ChangeEvent {
	var out []domain.ChangeEvent
	for {
		evt, ok := sub.TryNext()
		if !ok {
			return out
		}
		out = append(out, evt)
	}
}

func TestFeed_RoutesByFilter(t *testing.T) {
	f := New(8, nil)
	ctx := context.Background()

	reviewer, err := f.Subscribe(AllEvents())
	require.NoError(t, err)
	owner, err := f.Subscribe(OwnedBy("u1"))
	require.NoError(t, err)
	other, err := f.Subscribe(OwnedBy("u2"))
	require.NoError(t, err)

	require.NoError(t, f.Publish(ctx, event("c1", "u1", domain.ComplaintStatusInProgress)))

	assert.Len(t, drain(reviewer), 1)
	assert.Len(t, drain(owner), 1)
	assert.Empty(t, drain(other))
}

func TestFeed_FIFOPerSubscriber(t *testing.T) {
	f := New(8, nil)
	sub, err := f.Subscribe(AllEvents())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Publish(context.Background(), event(fmt.Sprintf("c%d", i), "u1", domain.ComplaintStatusResolved)))
	}

	got := drain(sub)
	require.Len(t, got, 5)
	for i, evt := range got {
		assert.Equal(t, fmt.Sprintf("c%d", i), evt.ComplaintID)
	}
}

func TestFeed_NoReplayForLateSubscribers(t *testing.T) {
	f := New(8, nil)
	require.NoError(t, f.Publish(context.Background(), event("c1", "u1", domain.ComplaintStatusResolved)))

	sub, err := f.Subscribe(AllEvents())
	require.NoError(t, err)

	assert.Empty(t, drain(sub))
}

// Queue of capacity 2, three events published before any drain: the
// subscriber observes the last two.
func TestFeed_DropsOldestOnOverflow(t *testing.T) {
	f := New(2, nil)
	sub, err := f.Subscribe(OwnedBy("u1"))
	require.NoError(t, err)

	ctx := context.Background()
	e1 := event("c1", "u1", domain.ComplaintStatusInProgress)
	e2 := event("c1", "u1", domain.ComplaintStatusResolved)
	e3 := event("c1", "u1", domain.ComplaintStatusPending)
	e2.Timestamp = e1.Timestamp.Add(time.Millisecond)
	e3.Timestamp = e1.Timestamp.Add(2 * time.Millisecond)
	for _, e := range []domain.ChangeEvent{e1, e2, e3} {
		require.NoError(t, f.Publish(ctx, e))
	}

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ComplaintStatusResolved, got[0].NewStatus)
	assert.Equal(t, domain.ComplaintStatusPending, got[1].NewStatus)
	assert.Equal(t, uint64(1), sub.Dropped())

	snap := domain.Snapshot{}
	for _, e := range got {
		snap.Apply(e)
	}
	assert.Equal(t, domain.ComplaintStatusPending, snap["c1"].Status)
}

func TestFeed_UnsubscribeIsIdempotent(t *testing.T) {
	f := New(4, nil)
	sub, err := f.Subscribe(AllEvents())
	require.NoError(t, err)

	f.Unsubscribe(sub)
	f.Unsubscribe(sub)
	f.Unsubscribe(nil)

	assert.Equal(t, 0, f.Len())
	assert.NoError(t, f.Publish(context.Background(), event("c1", "u1", domain.ComplaintStatusResolved)))

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionClosed)
}

func TestFeed_UnsubscribeDiscardsQueue(t *testing.T) {
	f := New(4, nil)
	sub, err := f.Subscribe(AllEvents())
	require.NoError(t, err)
	require.NoError(t, f.Publish(context.Background(), event("c1", "u1", domain.ComplaintStatusResolved)))

	f.Unsubscribe(sub)

	assert.Equal(t, 0, sub.Len())
	_, ok := sub.TryNext()
	assert.False(t, ok)
}

func TestFeed_Close(t *testing.T) {
	f := New(4, nil)
	sub, err := f.Subscribe(AllEvents())
	require.NoError(t, err)
	assert.False(t, f.Closed())

	f.Close()
	f.Close()
	assert.True(t, f.Closed())

	select {
	case <-sub.Done():
	default:
		t.Fatal("expected subscription to be closed with the feed")
	}
	assert.ErrorIs(t, f.Publish(context.Background(), event("c1", "u1", domain.ComplaintStatusResolved)), ErrFeedClosed)

	_, err = f.Subscribe(AllEvents())
	assert.ErrorIs(t, err, ErrFeedClosed)
}

func TestSubscription_NextWaitsForPublish(t *testing.T) {
	f := New(4, nil)
	sub, err := f.Subscribe(AllEvents())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = f.Publish(context.Background(), event("c9", "u1", domain.ComplaintStatusResolved))
	}()

	evt, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c9", evt.ComplaintID)
}

func TestSubscription_NextHonoursContext(t *testing.T) {
	f := New(4, nil)
	sub, err := f.Subscribe(AllEvents())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeed_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	f := New(16, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = f.Publish(ctx, event(fmt.Sprintf("c%d", j), fmt.Sprintf("u%d", i), domain.ComplaintStatusInProgress))
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub, err := f.Subscribe(OwnedBy(fmt.Sprintf("u%d", i)))
				if err != nil {
					return
				}
				drain(sub)
				f.Unsubscribe(sub)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, f.Len())
}

func TestFilterFor(t *testing.T) {
	filter, err := FilterFor(domain.Subject{ID: "r1", Role: domain.RoleReviewer})
	require.NoError(t, err)
	assert.True(t, filter.All)

	filter, err = FilterFor(domain.Subject{ID: "u1", Role: domain.RoleSubmitter})
	require.NoError(t, err)
	assert.Equal(t, OwnedBy("u1"), filter)
	assert.True(t, filter.Matches(event("c1", "u1", domain.ComplaintStatusResolved)))
	assert.False(t, filter.Matches(event("c2", "u2", domain.ComplaintStatusResolved)))

	_, err = FilterFor(domain.Subject{ID: "x", Role: "guest"})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}
