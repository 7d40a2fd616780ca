package handler

import (
	"time"

	"docdesk/internal/application/models"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	audit "docdesk/pkg/platform/audit"
)

type ApplicationResponse struct {
	ID            string        `json:"id"`
	DocumentID    string        `json:"document_id"`
	ApplicantID   string        `json:"applicant_id"`
	ReviewerID    string        `json:"reviewer_id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	NationalID    string        `json:"national_id"`
	TaxID         string        `json:"tax_id"`
	Gender        string        `json:"gender"`
	BirthDate     validity.Date `json:"birth_date"`
	LicenseID     string        `json:"license_id,omitempty"`
	Purpose       string        `json:"purpose"`
	AttachmentURL string        `json:"attachment_url"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type ListApplicationsResponse struct {
	Applications []ApplicationResponse `json:"applications"`
	Count        int                   `json:"count"`
}

func toApplicationResponse(a *models.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:            a.ID.String(),
		DocumentID:    a.DocumentID.String(),
		ApplicantID:   a.ApplicantID.String(),
		ReviewerID:    a.ReviewerID.String(),
		Name:          a.Name,
		Email:         a.Email,
		Phone:         a.Phone,
		Address:       a.Address,
		NationalID:    a.NationalID,
		TaxID:         a.TaxID,
		Gender:        string(a.Gender),
		BirthDate:     a.BirthDate,
		LicenseID:     a.LicenseID,
		Purpose:       a.Purpose,
		AttachmentURL: "/applications/" + a.ID.String() + "/attachment",
		Status:        a.Status.String(),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toListResponse(apps []*models.Application) ListApplicationsResponse {
	resp := ListApplicationsResponse{Applications: make([]ApplicationResponse, 0, len(apps)), Count: len(apps)}
	for _, a := range apps {
		resp.Applications = append(resp.Applications, toApplicationResponse(a))
	}
	return resp
}

// HistoryEntry is one recorded change to an application.
type HistoryEntry struct {
	Action     string      `json:"action"`
	ActorID    string      `json:"actor_id"`
	ActorRole  domain.Role `json:"actor_role"`
	Decision   string      `json:"decision,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	RequestID  string      `json:"request_id,omitempty"`
}

type HistoryResponse struct {
	ApplicationID string         `json:"application_id"`
	Events        []HistoryEntry `json:"events"`
}

func toHistoryResponse(id domain.ApplicationID, events []audit.Event) HistoryResponse {
	resp := HistoryResponse{ApplicationID: id.String(), Events: make([]HistoryEntry, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, HistoryEntry{
			Action:     e.Action,
			ActorID:    e.UserID.String(),
			ActorRole:  e.Role,
			Decision:   e.Decision,
			OccurredAt: e.Timestamp,
			RequestID:  e.RequestID,
		})
	}
	return resp
}
