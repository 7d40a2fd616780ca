package handler

import (
	"bufio"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"docdesk/internal/application/models"
	"docdesk/internal/attachment"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	dErrors "docdesk/pkg/domain-errors"
	strutil "docdesk/pkg/platform/strings"
)

const (
	maxBodyBytes = 64 << 10
	// Multipart bodies carry the attachment plus a few kilobytes of form fields.
	maxUploadBytes  = attachment.MaxSize + (1 << 20)
	maxFormMemory   = 8 << 20
	attachmentField = "attachment"
	sniffLength     = 512
)

// ContentRequest is the applicant-editable part of an application. It is the
// JSON body of PUT /applications/{id} and the form fields of POST /applications.
type ContentRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	NationalID string `json:"national_id"`
	TaxID      string `json:"tax_id"`
	Gender     string `json:"gender"`
	BirthDate  string `json:"birth_date"`
	LicenseID  string `json:"license_id,omitempty"`
	Purpose    string `json:"purpose"`
}

// ToModel converts the request. A malformed birth date is returned as a
// problem and left zero in the content; a blank one is left to the domain
// checks.
func (r *ContentRequest) ToModel() (models.Content, []dErrors.FieldError) {
	var (
		birth    validity.Date
		problems []dErrors.FieldError
	)
	if raw := strings.TrimSpace(r.BirthDate); raw != "" {
		d, err := validity.ParseDate(raw)
		if err != nil {
			problems = append(problems, dErrors.FieldError{Field: "birth_date", Message: "must be a date in YYYY-MM-DD format"})
		} else {
			birth = d
		}
	}
	return models.Content{
		Identity: models.Identity{
			Name:       r.Name,
			Email:      r.Email,
			Phone:      r.Phone,
			Address:    r.Address,
			NationalID: r.NationalID,
			TaxID:      r.TaxID,
			Gender:     models.Gender(strings.TrimSpace(r.Gender)),
			BirthDate:  birth,
			LicenseID:  r.LicenseID,
		},
		Purpose: r.Purpose,
	}, problems
}

// UpdateStatusRequest is the body of PUT /applications/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// parseCreateForm reads a multipart POST /applications body. The returned
// upload reads straight from the request; the caller closes the file.
func parseCreateForm(r *http.Request) (models.CreateRequest, multipart.File, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return models.CreateRequest{}, nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body")
	}

	docID, err := domain.ParseDocumentID(r.FormValue("document_id"))
	if err != nil {
		return models.CreateRequest{}, nil, err
	}

	content := ContentRequest{
		Name:       r.FormValue("name"),
		Email:      r.FormValue("email"),
		Phone:      r.FormValue("phone"),
		Address:    r.FormValue("address"),
		NationalID: r.FormValue("national_id"),
		TaxID:      r.FormValue("tax_id"),
		Gender:     r.FormValue("gender"),
		BirthDate:  r.FormValue("birth_date"),
		LicenseID:  r.FormValue("license_id"),
		Purpose:    r.FormValue("purpose"),
	}
	req := models.CreateRequest{DocumentID: docID}
	req.Content, req.InputProblems = content.ToModel()

	file, header, err := r.FormFile(attachmentField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			// Reported by the service alongside any other invalid field.
			return req, nil, nil
		}
		return models.CreateRequest{}, nil, dErrors.New(dErrors.CodeBadRequest, "invalid attachment part")
	}

	body := bufio.NewReaderSize(file, sniffLength)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := body.Peek(sniffLength)
		contentType = http.DetectContentType(head)
	}
	req.Attachment = &attachment.Upload{
		Body:        body,
		Size:        header.Size,
		ContentType: contentType,
		Filename:    header.Filename,
	}
	return req, file, nil
}

// parseStatuses accepts ?status=pending&status=completed as well as ?status=pending,completed.
func parseStatuses(values []string) ([]models.Status, error) {
	var out []models.Status
	for _, v := range strutil.SplitListLower(values...) {
		st, err := models.ParseStatus(v)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
