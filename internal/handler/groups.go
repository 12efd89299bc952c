package handler

import (
	"log/slog"
	"net/http"

	"github.com/rollcall/rollcall/internal/auth"
	"github.com/rollcall/rollcall/internal/handler/dto"
	"github.com/rollcall/rollcall/internal/service"
)

// GroupHandler handles HTTP requests for group operations.
// Every route requires the auth middleware.
type GroupHandler struct {
	svc    *service.GroupService
	logger *slog.Logger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(svc *service.GroupService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/groups.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.GroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := auth.MustUserFromContext(r.Context())
	group, err := h.svc.CreateGroup(r.Context(), service.CreateGroupInput{
		Name:    req.Name,
		OwnerID: user.ID,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToGroupResponse(group))
}

// List handles GET /api/v1/groups, returning the caller's groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	groups, err := h.svc.GetOwnerGroups(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToGroupListResponse(groups))
}

// Get handles GET /api/v1/groups/{id}.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	group, err := h.svc.GetGroupByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToGroupResponse(group))
}

// Update handles PATCH /api/v1/groups/{id}.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req dto.GroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := auth.MustUserFromContext(r.Context())
	group, err := h.svc.UpdateGroup(r.Context(), id, user.ID, service.UpdateGroupInput{Name: req.Name})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToGroupResponse(group))
}

// UpdateMembers handles PUT /api/v1/groups/{id}/members.
// A missing member_ids field clears the member set.
func (h *GroupHandler) UpdateMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req dto.UpdateMembersRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := auth.MustUserFromContext(r.Context())
	group, err := h.svc.UpdateGroupMembers(r.Context(), id, user.ID, req.MemberIDs)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToGroupResponse(group))
}

// Delete handles DELETE /api/v1/groups/{id}.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	user := auth.MustUserFromContext(r.Context())
	if err := h.svc.DeleteGroup(r.Context(), id, user.ID); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
