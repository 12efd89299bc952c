// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rollcall/rollcall/internal/auth"
	"github.com/rollcall/rollcall/internal/handler/dto"
	"github.com/rollcall/rollcall/internal/middleware"
	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/service"
)

// Handler serves router-level fallbacks.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.NewError(code, message))
}

// decodeJSON decodes the request body into dst.
// On failure it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
	return false
}

// parseID reads a positive integer URL parameter.
func parseID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Identifier must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "USER_EXISTS", "A user with this email or username already exists")
	case errors.Is(err, service.ErrGroupAlreadyExists):
		writeError(w, http.StatusConflict, "GROUP_EXISTS", "You already own a group with this name")
	case errors.Is(err, service.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid login or password")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired")
	case errors.Is(err, service.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "GROUP_NOT_FOUND", "Group not found")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrGroupOwner):
		writeError(w, http.StatusForbidden, "NOT_GROUP_OWNER", "Only the group owner may modify this group")
	case errors.Is(err, service.ErrGroupNameValidation):
		writeError(w, http.StatusBadRequest, "INVALID_GROUP_NAME", model.ErrGroupNameLength.Error())
	default:
		logger.Error("internal_error",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
