package domain

import "strings"

// Role represents the fixed role of an authenticated subject
type Role string

const (
	RoleSubmitter Role = "submitter"
	RoleReviewer  Role = "reviewer"
)

// ParseRole maps a token claim onto a Role. Unknown values yield false.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleSubmitter:
		return RoleSubmitter, true
	case RoleReviewer:
		return RoleReviewer, true
	}
	return "", false
}

// Subject is the authenticated caller attached to every request
type Subject struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (s Subject) IsReviewer() bool  { return s.Role == RoleReviewer }
func (s Subject) IsSubmitter() bool { return s.Role == RoleSubmitter }
