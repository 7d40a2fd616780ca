package models

import (
	"docdesk/internal/attachment"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
)

// CreateRequest carries a new application and its attachment.
type CreateRequest struct {
	DocumentID domain.DocumentID
	Content    Content
	Attachment *attachment.Upload

	// InputProblems are form fields the transport could not decode, such as
	// a malformed birth date. They are reported with the other field checks.
	InputProblems []dErrors.FieldError
}

// ContentUpdate replaces an application's content.
type ContentUpdate struct {
	Content       Content
	InputProblems []dErrors.FieldError
}

// Query is what stores evaluate. Zero fields do not filter.
type Query struct {
	ApplicantID domain.UserID
	ReviewerID  domain.UserID
	DocumentID  domain.DocumentID
	Statuses    []Status
}

// ListFilter narrows ListFor. An empty Statuses returns every status.
type ListFilter struct {
	Statuses []Status
}
