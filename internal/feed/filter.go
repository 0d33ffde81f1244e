package feed

import "github.com/complaintdesk/complaintdesk/internal/domain"

// Filter routes events to a subscription: either every event, or only
// events for complaints owned by OwnerID.
type Filter struct {
	All     bool
	OwnerID string
}

// AllEvents is the filter used by reviewer sessions
func AllEvents() Filter {
	return Filter{All: true}
}

// OwnedBy matches events for complaints owned by ownerID
func OwnedBy(ownerID string) Filter {
	return Filter{OwnerID: ownerID}
}

// Matches reports whether evt should be delivered under f
func (f Filter) Matches(evt domain.ChangeEvent) bool {
	if f.All {
		return true
	}
	return f.OwnerID != "" && evt.OwnerID == f.OwnerID
}

func (f Filter) String() string {
	if f.All {
		return "all"
	}
	return "owner=" + f.OwnerID
}

// FilterFor derives the subscription filter a subject is entitled to from
// the same policy that scopes list reads.
func FilterFor(s domain.Subject) (Filter, error) {
	scope, ok := domain.AccessPolicy{}.ListScope(s)
	if !ok {
		return Filter{}, domain.ErrAccessDenied
	}
	if scope.OwnerID == nil {
		return AllEvents(), nil
	}
	return OwnedBy(*scope.OwnerID), nil
}
