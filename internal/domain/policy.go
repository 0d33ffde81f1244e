package domain

// AccessPolicy centralises every authorization decision over complaints.
// It holds no state and is evaluated fresh on every call.
type AccessPolicy struct{}

func (AccessPolicy) CanCreate(s Subject) bool {
	return s.IsSubmitter()
}

func (AccessPolicy) CanRead(s Subject, c *Complaint) bool {
	switch s.Role {
	case RoleReviewer:
		return true
	case RoleSubmitter:
		return c != nil && s.ID != "" && s.ID == c.OwnerID
	}
	return false
}

func (AccessPolicy) CanMutateStatus(s Subject) bool {
	return s.IsReviewer()
}

func (AccessPolicy) CanMutateResponse(s Subject) bool {
	return s.IsReviewer()
}

// ListScope returns the listing filter a subject is entitled to.
// ok is false for subjects with an unknown role.
func (AccessPolicy) ListScope(s Subject) (filter ComplaintFilter, ok bool) {
	switch s.Role {
	case RoleReviewer:
		return ComplaintFilter{}, true
	case RoleSubmitter:
		owner := s.ID
		return ComplaintFilter{OwnerID: &owner}, true
	}
	return ComplaintFilter{}, false
}
