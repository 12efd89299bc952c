package model

import (
	"errors"
	"slices"
	"time"
	"unicode/utf8"
)

// Group name bounds, counted in characters.
const (
	GroupNameMinLength = 3
	GroupNameMaxLength = 50
)

// ErrGroupNameLength is returned when a group name is out of bounds.
var ErrGroupNameLength = errors.New("group name must be between 3 and 50 characters")

// Group is a named set of users owned by one user.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	Members   []int64   `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupMember is the membership edge between a group and a user.
type GroupMember struct {
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// IsOwnedBy reports whether userID owns the group.
func (g *Group) IsOwnedBy(userID int64) bool {
	return g != nil && g.OwnerID == userID
}

// Clone returns a copy of the group with its own member slice.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	c.Members = slices.Clone(g.Members)
	return &c
}

// ValidateGroupName checks the name length bounds.
func ValidateGroupName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < GroupNameMinLength || n > GroupNameMaxLength {
		return ErrGroupNameLength
	}
	return nil
}

// NormalizeMemberIDs returns the distinct ids in ascending order.
// The result is never nil so it encodes as an empty JSON array.
func NormalizeMemberIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	out = append(out, ids...)
	slices.Sort(out)
	return slices.Compact(out)
}
