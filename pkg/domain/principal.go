package domain

import (
	dErrors "docdesk/pkg/domain-errors"
)

// Role is the role class an authenticated principal acts under for one request.
// The same user may act as Owner when posting and as Reviewer when deciding.
type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleOwner    Role = "owner"
	RoleReviewer Role = "reviewer"
)

var validRoles = map[Role]bool{
	RoleSeeker:   true,
	RoleOwner:    true,
	RoleReviewer: true,
}

// ParseRole validates a role claim taken from a token.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated actor of a request. It is supplied by the
// authentication layer and never changes during the request.
type Principal struct {
	ID   UserID `json:"id"`
	Role Role   `json:"role"`
}

// IsZero reports whether no principal was established.
func (p Principal) IsZero() bool {
	return p.ID.IsNil() && p.Role == ""
}
