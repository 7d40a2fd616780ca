// Package lifecycle is the application state machine:
//
//	Pending -> Completed
//	Pending -> Rejected
//
// Completed and Rejected are terminal. Only the reviewer bound at filing time
// may move an application, and the write is a compare-and-swap on the prior
// status so concurrent decisions cannot both stick.
package lifecycle

import (
	"context"
	"errors"

	"docdesk/internal/application/models"
	"docdesk/internal/authz"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	"docdesk/pkg/platform/sentinel"
)

// Store persists a status change only if the stored status still equals expectedPrior.
type Store interface {
	Save(ctx context.Context, app *models.Application, expectedPrior models.Status) error
}

type Lifecycle struct {
	store Store
	clock validity.Clock
}

func New(store Store, clock validity.Clock) *Lifecycle {
	return &Lifecycle{store: store, clock: clock}
}

// Transition moves app to target on behalf of principal and returns the
// updated copy. app itself is not modified.
//
// Errors:
//   - Forbidden with the authorizer's reason when principal is not the bound reviewer
//   - InvalidTransition when target is not terminal, app is not pending, or a
//     concurrent decision won the compare-and-swap
//   - NotFound when the application disappeared before the write
//   - StorageFailure for any other store error
func (l *Lifecycle) Transition(ctx context.Context, app *models.Application, target models.Status, principal domain.Principal) (*models.Application, error) {
	decision := authz.Authorize(principal, authz.ActionApplicationUpdateStatus, authz.ResourceRef{Reviewer: app.ReviewerID})
	if !decision.Allowed {
		return nil, dErrors.Forbidden(string(decision.Reason), "not permitted to change application status")
	}
	if !target.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "status can only become completed or rejected")
	}
	if !app.CanTransitionTo(target) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "application is already "+app.Status.String())
	}

	prior := app.Status
	updated := *app
	updated.ApplyTransition(target, l.clock())

	if err := l.store.Save(ctx, &updated, prior); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "application was decided concurrently")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		default:
			return nil, dErrors.StorageFailure(err, "failed to save application status")
		}
	}
	return &updated, nil
}
