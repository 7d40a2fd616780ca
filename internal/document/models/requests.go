package models

import (
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
)

// CreateRequest carries the fields of a new listing.
type CreateRequest struct {
	Title       string
	Description string
	Category    string
	Issuer      string
	Country     string
	City        string
	Validity    validity.Spec

	// InputProblems are fields the transport could not decode, such as a
	// malformed date. They are reported together with the domain checks.
	InputProblems []dErrors.FieldError
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Category    *string
	Issuer      *string
	Country     *string
	City        *string
	Validity    *validity.Spec

	InputProblems []dErrors.FieldError
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Issuer == nil &&
		p.Country == nil && p.City == nil && p.Validity == nil && len(p.InputProblems) == 0
}

// ListFilter narrows Document.List. Empty fields do not filter.
type ListFilter struct {
	Category       string
	Country        string
	City           string
	OwnerID        domain.UserID
	IncludeExpired bool
}

// Query is what stores evaluate. ActiveOn, when set, drops documents that are
// expired on that day.
type Query struct {
	Category string
	Country  string
	City     string
	OwnerID  domain.UserID
	ActiveOn *validity.Date
}
