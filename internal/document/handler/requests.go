package handler

import (
	"strings"

	"docdesk/internal/document/models"
	"docdesk/internal/validity"
	dErrors "docdesk/pkg/domain-errors"
)

// maxBodyBytes caps request bodies. Field rules are enforced by the service
// after authorization.
const maxBodyBytes = 64 << 10

const dateFormatMessage = "must be a date in YYYY-MM-DD format"

type LocationRequest struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// CreateDocumentRequest is the body of POST /documents.
type CreateDocumentRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Issuer      string          `json:"issuer"`
	Location    LocationRequest `json:"location"`
	Validity    ValidityRequest `json:"validity"`
}

// ValidityRequest mirrors validity.Spec with dates kept as text so a
// malformed date is reported as a field problem instead of a decode failure.
type ValidityRequest struct {
	Fixed  *validity.Fixed `json:"fixed,omitempty"`
	Ranged *RangedRequest  `json:"ranged,omitempty"`
}

type RangedRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ToModel parses the dates. Blank dates stay zero and are reported by the
// domain checks; malformed ones are returned as problems.
func (r ValidityRequest) ToModel() (validity.Spec, []dErrors.FieldError) {
	spec := validity.Spec{Fixed: r.Fixed}
	if r.Ranged == nil {
		return spec, nil
	}
	var problems []dErrors.FieldError
	parse := func(field, value string) validity.Date {
		value = strings.TrimSpace(value)
		if value == "" {
			return validity.Date{}
		}
		d, err := validity.ParseDate(value)
		if err != nil {
			problems = append(problems, dErrors.FieldError{Field: field, Message: dateFormatMessage})
			return validity.Date{}
		}
		return d
	}
	spec.Ranged = &validity.Ranged{
		From: parse("validity.ranged.from", r.Ranged.From),
		To:   parse("validity.ranged.to", r.Ranged.To),
	}
	return spec, problems
}

// Normalize trims surrounding whitespace.
func (r *CreateDocumentRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Issuer = strings.TrimSpace(r.Issuer)
	r.Location.Country = strings.TrimSpace(r.Location.Country)
	r.Location.City = strings.TrimSpace(r.Location.City)
}

func (r *CreateDocumentRequest) ToModel() models.CreateRequest {
	req := models.CreateRequest{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Issuer:      r.Issuer,
		Country:     r.Location.Country,
		City:        r.Location.City,
	}
	req.Validity, req.InputProblems = r.Validity.ToModel()
	return req
}

type PatchLocationRequest struct {
	Country *string `json:"country,omitempty"`
	City    *string `json:"city,omitempty"`
}

// PatchDocumentRequest is the body of PATCH /documents/{id}. Absent fields are kept.
type PatchDocumentRequest struct {
	Title       *string               `json:"title,omitempty"`
	Description *string               `json:"description,omitempty"`
	Category    *string               `json:"category,omitempty"`
	Issuer      *string               `json:"issuer,omitempty"`
	Location    *PatchLocationRequest `json:"location,omitempty"`
	Validity    *ValidityRequest      `json:"validity,omitempty"`
}

func (r *PatchDocumentRequest) ToModel() models.Patch {
	p := models.Patch{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Issuer:      r.Issuer,
	}
	if r.Validity != nil {
		spec, problems := r.Validity.ToModel()
		p.Validity = &spec
		p.InputProblems = problems
	}
	if r.Location != nil {
		p.Country = r.Location.Country
		p.City = r.Location.City
	}
	return p
}
