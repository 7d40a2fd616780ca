// Package authz is the single decision point for every mutation and read of
// documents and applications. It is a pure table: no IO, no clock, no state.
package authz

import (
	"docdesk/pkg/domain"
)

// Action names an operation a principal attempts.
type Action string

const (
	ActionDocumentCreate Action = "document.create"
	ActionDocumentUpdate Action = "document.update"
	ActionDocumentDelete Action = "document.delete"
	ActionDocumentList   Action = "document.list"
	ActionDocumentView   Action = "document.view"

	ActionApplicationCreate          Action = "application.create"
	ActionApplicationUpdateContent   Action = "application.update_content"
	ActionApplicationUpdateStatus    Action = "application.update_status"
	ActionApplicationDelete          Action = "application.delete"
	ActionApplicationView            Action = "application.view"
	ActionApplicationListAsReviewer  Action = "application.list_as_reviewer"
	ActionApplicationListAsApplicant Action = "application.list_as_applicant"
)

// Reason is a stable code explaining a denial. NotOwner covers both a foreign
// document owner and a seeker acting on another seeker's application.
type Reason string

const (
	ReasonRoleMismatch     Reason = "role_mismatch"
	ReasonNotOwner         Reason = "not_owner"
	ReasonNotBoundReviewer Reason = "not_bound_reviewer"
	ReasonUnknownAction    Reason = "unknown_action"
)

// ResourceRef carries the ownership facts of the resource being acted on.
// Fields that do not apply to the action are left zero.
type ResourceRef struct {
	Owner     domain.UserID
	Applicant domain.UserID
	Reviewer  domain.UserID
}

// Decision is the outcome of Authorize. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason Reason) Decision { return Decision{Reason: reason} }

// Authorize decides whether principal may perform action on ref.
func Authorize(principal domain.Principal, action Action, ref ResourceRef) Decision {
	switch action {
	case ActionDocumentList, ActionDocumentView:
		return allow()

	case ActionDocumentCreate:
		if principal.Role != domain.RoleOwner {
			return deny(ReasonRoleMismatch)
		}
		// On create the owner is the principal itself unless the caller says otherwise.
		if !ref.Owner.IsNil() && ref.Owner != principal.ID {
			return deny(ReasonNotOwner)
		}
		return allow()

	case ActionDocumentUpdate, ActionDocumentDelete:
		if principal.Role != domain.RoleOwner {
			return deny(ReasonRoleMismatch)
		}
		if ref.Owner != principal.ID {
			return deny(ReasonNotOwner)
		}
		return allow()

	case ActionApplicationCreate:
		if principal.Role != domain.RoleSeeker {
			return deny(ReasonRoleMismatch)
		}
		if !ref.Applicant.IsNil() && ref.Applicant != principal.ID {
			return deny(ReasonNotOwner)
		}
		return allow()

	case ActionApplicationUpdateContent, ActionApplicationDelete:
		if principal.Role != domain.RoleSeeker {
			return deny(ReasonRoleMismatch)
		}
		if ref.Applicant != principal.ID {
			return deny(ReasonNotOwner)
		}
		return allow()

	case ActionApplicationUpdateStatus:
		if principal.Role != domain.RoleReviewer {
			return deny(ReasonRoleMismatch)
		}
		if ref.Reviewer != principal.ID {
			return deny(ReasonNotBoundReviewer)
		}
		return allow()

	case ActionApplicationView:
		switch principal.Role {
		case domain.RoleSeeker:
			if ref.Applicant != principal.ID {
				return deny(ReasonNotOwner)
			}
			return allow()
		case domain.RoleReviewer:
			if ref.Reviewer != principal.ID {
				return deny(ReasonNotBoundReviewer)
			}
			return allow()
		default:
			return deny(ReasonRoleMismatch)
		}

	case ActionApplicationListAsReviewer:
		if principal.Role != domain.RoleReviewer {
			return deny(ReasonRoleMismatch)
		}
		return allow()

	case ActionApplicationListAsApplicant:
		if principal.Role != domain.RoleSeeker {
			return deny(ReasonRoleMismatch)
		}
		return allow()
	}
	return deny(ReasonUnknownAction)
}
