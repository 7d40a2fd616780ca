package models

import (
	"strings"
	"time"

	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	"docdesk/pkg/platform/validation"
)

// Field limits carried over from the listing form.
const (
	TitleMinLen       = 3
	TitleMaxLen       = 30
	DescriptionMinLen = 10
	DescriptionMaxLen = 500
	IssuerMinLen      = 3
	IssuerMaxLen      = 30
	CategoryMaxLen    = 64
	LocationMaxLen    = 100
)

// Location is where the document is issued.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// Document is a listing published by an owner with a validity window.
//
// Invariants:
//   - Exactly one validity variant is set
//   - OwnerID and PostedOn are immutable after creation
//   - Expiry is derived from Validity, MarkedExpired and the clock; it is never stored
type Document struct {
	ID            domain.DocumentID `json:"id"`
	OwnerID       domain.UserID     `json:"owner_id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Category      string            `json:"category"`
	Issuer        string            `json:"issuer"`
	Location      Location          `json:"location"`
	Validity      validity.Spec     `json:"validity"`
	MarkedExpired bool              `json:"marked_expired"`
	PostedOn      time.Time         `json:"posted_on"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// State computes the document's validity at now. A manual expiry mark wins
// over the computed window.
func (d *Document) State(now time.Time) validity.State {
	if d.MarkedExpired {
		return validity.StateExpired
	}
	return validity.Compute(d.Validity, now)
}

func (d *Document) IsExpired(now time.Time) bool {
	return d.State(now) == validity.StateExpired
}

// Validate checks every field and reports all problems in one validation error.
// Input problems found while decoding the request are reported first and take
// precedence over checks on the same field.
func (d *Document) Validate(input ...dErrors.FieldError) error {
	var c validation.Collector
	c.Extend(input)
	c.Length("title", d.Title, TitleMinLen, TitleMaxLen)
	c.Length("description", d.Description, DescriptionMinLen, DescriptionMaxLen)
	c.Length("category", d.Category, 1, CategoryMaxLen)
	c.Length("issuer", d.Issuer, IssuerMinLen, IssuerMaxLen)
	c.Length("location.country", d.Location.Country, 1, LocationMaxLen)
	c.Length("location.city", d.Location.City, 1, LocationMaxLen)
	c.Extend(d.Validity.Problems())
	return c.Err("invalid document")
}

// ApplyPatch overwrites the fields present in p. Call Validate afterwards.
func (d *Document) ApplyPatch(p Patch, now time.Time) {
	if p.Title != nil {
		d.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		d.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		d.Category = strings.TrimSpace(*p.Category)
	}
	if p.Issuer != nil {
		d.Issuer = strings.TrimSpace(*p.Issuer)
	}
	if p.Country != nil {
		d.Location.Country = strings.TrimSpace(*p.Country)
	}
	if p.City != nil {
		d.Location.City = strings.TrimSpace(*p.City)
	}
	if p.Validity != nil {
		d.Validity = *p.Validity
	}
	d.UpdatedAt = now
}

// ApplyMarkExpired sets the manual expiry mark. It is idempotent.
func (d *Document) ApplyMarkExpired(now time.Time) {
	if d.MarkedExpired {
		return
	}
	d.MarkedExpired = true
	d.UpdatedAt = now
}

// NewDocument builds a document owned by ownerID from a create request.
// The result is not validated; call Validate before persisting.
func NewDocument(docID domain.DocumentID, ownerID domain.UserID, req CreateRequest, now time.Time) *Document {
	return &Document{
		ID:          docID,
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Issuer:      strings.TrimSpace(req.Issuer),
		Location: Location{
			Country: strings.TrimSpace(req.Country),
			City:    strings.TrimSpace(req.City),
		},
		Validity:  req.Validity,
		PostedOn:  now,
		UpdatedAt: now,
	}
}

// View pairs a document with its state at the time it was read.
type View struct {
	Document *Document
	State    validity.State
}

func NewView(d *Document, now time.Time) View {
	return View{Document: d, State: d.State(now)}
}
