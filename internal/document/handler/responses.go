package handler

import (
	"time"

	"docdesk/internal/document/models"
	"docdesk/internal/validity"
)

type DocumentResponse struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Issuer        string          `json:"issuer"`
	Location      LocationRequest `json:"location"`
	Validity      validity.Spec   `json:"validity"`
	MarkedExpired bool            `json:"marked_expired"`
	State         validity.State  `json:"state"`
	PostedOn      time.Time       `json:"posted_on"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ListDocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Count     int                `json:"count"`
}

func toDocumentResponse(v models.View) DocumentResponse {
	d := v.Document
	return DocumentResponse{
		ID:            d.ID.String(),
		OwnerID:       d.OwnerID.String(),
		Title:         d.Title,
		Description:   d.Description,
		Category:      d.Category,
		Issuer:        d.Issuer,
		Location:      LocationRequest{Country: d.Location.Country, City: d.Location.City},
		Validity:      d.Validity,
		MarkedExpired: d.MarkedExpired,
		State:         v.State,
		PostedOn:      d.PostedOn,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toListResponse(views []models.View) ListDocumentsResponse {
	resp := ListDocumentsResponse{Documents: make([]DocumentResponse, 0, len(views)), Count: len(views)}
	for _, v := range views {
		resp.Documents = append(resp.Documents, toDocumentResponse(v))
	}
	return resp
}
