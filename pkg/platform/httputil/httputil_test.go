package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "docdesk/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})

	t.Run("storage failure hides its cause", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.StorageFailure(errors.New("dial tcp 10.0.0.5:5432"), "failed to save"))

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
		if strings.Contains(w.Body.String(), "10.0.0.5") {
			t.Fatalf("storage cause leaked into response: %s", w.Body.String())
		}
	})
}

func TestWriteError_DomainKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"forbidden", dErrors.Forbidden("not_owner", "nope"), http.StatusForbidden, "forbidden"},
		{"not found", dErrors.New(dErrors.CodeNotFound, "document not found"), http.StatusNotFound, "not_found"},
		{"document expired", dErrors.New(dErrors.CodeDocumentExpired, "expired"), http.StatusGone, "document_expired"},
		{"invalid transition", dErrors.New(dErrors.CodeInvalidTransition, "terminal"), http.StatusConflict, "invalid_transition"},
		{"invalid state", dErrors.New(dErrors.CodeInvalidState, "not pending"), http.StatusConflict, "invalid_state"},
		{"foreign error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Error != tt.code {
				t.Fatalf("expected error code %s, got %q", tt.code, body.Error)
			}
		})
	}
}

func TestWriteError_Payloads(t *testing.T) {
	t.Run("forbidden carries reason", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Forbidden("not_bound_reviewer", "not permitted"))

		var body ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Reason != "not_bound_reviewer" {
			t.Fatalf("expected reason not_bound_reviewer, got %q", body.Reason)
		}
	})

	t.Run("validation carries every field", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Validation("invalid", []dErrors.FieldError{
			{Field: "title", Message: "is required"},
			{Field: "tax_id", Message: "must be exactly 10 characters"},
		}))

		var body ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(body.Fields) != 2 || body.Fields[1].Field != "tax_id" {
			t.Fatalf("expected both fields, got %+v", body.Fields)
		}
	})
}
