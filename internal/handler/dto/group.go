package dto

import (
	"time"

	"github.com/rollcall/rollcall/internal/model"
)

// GroupRequest is the body for creating or renaming a group.
type GroupRequest struct {
	Name string `json:"name"`
}

// UpdateMembersRequest replaces a group's member set.
type UpdateMembersRequest struct {
	MemberIDs []int64 `json:"member_ids"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	Members   []int64   `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupListResponse wraps a list of groups.
type GroupListResponse struct {
	Data []GroupResponse `json:"data"`
}

// ToGroupResponse converts a Group model to GroupResponse DTO.
// Members always encode as an array, never null.
func ToGroupResponse(group *model.Group) *GroupResponse {
	members := group.Members
	if members == nil {
		members = []int64{}
	}
	return &GroupResponse{
		ID:        group.ID,
		Name:      group.Name,
		OwnerID:   group.OwnerID,
		Members:   members,
		CreatedAt: group.CreatedAt,
		UpdatedAt: group.UpdatedAt,
	}
}

// ToGroupListResponse converts a slice of Group models.
func ToGroupListResponse(groups []*model.Group) *GroupListResponse {
	data := make([]GroupResponse, len(groups))
	for i, group := range groups {
		data[i] = *ToGroupResponse(group)
	}
	return &GroupListResponse{Data: data}
}
