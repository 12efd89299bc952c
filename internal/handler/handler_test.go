package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/rollcall/rollcall/internal/handler/dto"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var response dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return response
}

func TestHandler_NotFound(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", got)
	}
	if response := decodeError(t, rec); response.Error.Code != "NOT_FOUND" {
		t.Errorf("unexpected error code: %s", response.Error.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	h.MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
	if response := decodeError(t, rec); response.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected error code: %s", response.Error.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		limit      int64
		wantOK     bool
		wantStatus int
	}{
		{"valid", `{"name":"Team"}`, 1024, true, http.StatusOK},
		{"malformed", `{"name":`, 1024, false, http.StatusBadRequest},
		{"too large", `{"name":"` + strings.Repeat("x", 64) + `"}`, 16, false, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Body = http.MaxBytesReader(rec, req.Body, tt.limit)

			var dst dto.GroupRequest
			ok := decodeJSON(rec, req, &dst)

			if ok != tt.wantOK {
				t.Fatalf("decodeJSON ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok && rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ok && dst.Name != "Team" {
				t.Errorf("decoded name = %q", dst.Name)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw    string
		wantOK bool
	}{
		{"1", true},
		{"42", true},
		{"0", false},
		{"-3", false},
		{"abc", false},
		{"1.5", false},
		{"99999999999999999999", false},
	}

	for _, tt := range tests {
		raw, wantOK := tt.raw, tt.wantOK
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/groups/"+raw, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", raw)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		_, ok := parseID(rec, req, "id")
		if ok != wantOK {
			t.Errorf("parseID(%q) ok = %v, want %v", raw, ok, wantOK)
		}
		if !ok && rec.Code != http.StatusBadRequest {
			t.Errorf("parseID(%q) status = %d, want 400", raw, rec.Code)
		}
	}
}
