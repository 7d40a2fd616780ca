package models

import (
	"strings"
	"time"

	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	"docdesk/pkg/platform/validation"
)

// Status is where an application stands in review.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusRejected
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status "+s)
	}
	return st, nil
}

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Field limits carried over from the application form.
const (
	NameMinLen       = 3
	NameMaxLen       = 30
	NationalIDLength = 12
	TaxIDLength      = 10
	AddressMaxLen    = 200
	LicenseIDMaxLen  = 30
	PurposeMaxLen    = 1000
)

// Identity is the applicant's personal data. LicenseID is the only optional field.
type Identity struct {
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone"`
	Address    string        `json:"address"`
	NationalID string        `json:"national_id"`
	TaxID      string        `json:"tax_id"`
	Gender     Gender        `json:"gender"`
	BirthDate  validity.Date `json:"birth_date"`
	LicenseID  string        `json:"license_id,omitempty"`
}

// Content is the part of an application its applicant may edit while pending.
type Content struct {
	Identity
	Purpose string `json:"purpose"`
}

// Normalize trims surrounding whitespace from every text field.
func (c *Content) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.NationalID = strings.TrimSpace(c.NationalID)
	c.TaxID = strings.TrimSpace(c.TaxID)
	c.LicenseID = strings.TrimSpace(c.LicenseID)
	c.Purpose = strings.TrimSpace(c.Purpose)
}

// Problems lists every invalid field. today is the current UTC day; the birth
// date must fall strictly before it. input holds problems found while decoding
// the request; they are listed first and replace checks on the same field.
func (c *Content) Problems(today validity.Date, input ...dErrors.FieldError) []dErrors.FieldError {
	var v validation.Collector
	v.Extend(input)
	v.Length("name", c.Name, NameMinLen, NameMaxLen)
	v.Email("email", c.Email)
	v.Phone("phone", c.Phone)
	v.Length("address", c.Address, 1, AddressMaxLen)
	v.Exact("national_id", c.NationalID, NationalIDLength)
	v.Exact("tax_id", c.TaxID, TaxIDLength)
	v.OneOf("gender", string(c.Gender), string(GenderMale), string(GenderFemale), string(GenderOther))
	switch {
	case c.BirthDate.IsZero():
		v.Add("birth_date", "is required")
	case !c.BirthDate.Before(today):
		v.Add("birth_date", "must be in the past")
	}
	if len(c.LicenseID) > LicenseIDMaxLen {
		v.Add("license_id", "must be at most 30 characters")
	}
	v.Length("purpose", c.Purpose, 1, PurposeMaxLen)
	return v.Fields()
}

// Application is a seeker's request against a document.
//
// Invariants:
//   - ReviewerID is the document owner at filing time and never changes
//   - ApplicantID and DocumentID never change
//   - Status only moves Pending -> Completed or Pending -> Rejected
type Application struct {
	ID          domain.ApplicationID `json:"id"`
	DocumentID  domain.DocumentID    `json:"document_id"`
	ApplicantID domain.UserID        `json:"applicant_id"`
	ReviewerID  domain.UserID        `json:"reviewer_id"`
	Content
	AttachmentRef string    `json:"attachment_ref"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewApplication builds a pending application bound to reviewer.
func NewApplication(id domain.ApplicationID, documentID domain.DocumentID, applicant, reviewer domain.UserID, content Content, attachmentRef string, now time.Time) *Application {
	return &Application{
		ID:            id,
		DocumentID:    documentID,
		ApplicantID:   applicant,
		ReviewerID:    reviewer,
		Content:       content,
		AttachmentRef: attachmentRef,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanUpdateContent reports whether the applicant may still edit.
func (a *Application) CanUpdateContent() bool {
	return a.Status == StatusPending
}

// ApplyContent replaces the editable content. Call CanUpdateContent first.
func (a *Application) ApplyContent(c Content, now time.Time) {
	a.Content = c
	a.UpdatedAt = now
}

// CanTransitionTo reports whether the state machine allows moving to target.
func (a *Application) CanTransitionTo(target Status) bool {
	return a.Status == StatusPending && target.IsTerminal()
}

// ApplyTransition sets the new status. Call CanTransitionTo first.
func (a *Application) ApplyTransition(target Status, now time.Time) {
	a.Status = target
	a.UpdatedAt = now
}
