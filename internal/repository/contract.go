package repository

import (
	"context"
	"errors"

	"github.com/rollcall/rollcall/internal/model"
)

// Storage errors shared by every backend.
var (
	// ErrNotFound is returned by Update and Delete when the row is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("unique constraint conflict")
	// ErrReference is returned when a write points at a missing parent row.
	ErrReference = errors.New("referenced record does not exist")
)

// UserRepository persists users.
// Lookups return (nil, nil) when nothing matches.
type UserRepository interface {
	Get(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Add(ctx context.Context, user *model.User) (*model.User, error)
	Update(ctx context.Context, id int64, user *model.User) (*model.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*model.User, error)
}

// GroupRepository persists groups without their members.
// Lookups return (nil, nil) when nothing matches.
type GroupRepository interface {
	Get(ctx context.Context, id int64) (*model.Group, error)
	GetByOwnerAndName(ctx context.Context, ownerID int64, name string) (*model.Group, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.Group, error)
	Add(ctx context.Context, group *model.Group) (*model.Group, error)
	Update(ctx context.Context, id int64, group *model.Group) (*model.Group, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*model.Group, error)
}

// GroupMemberRepository persists membership edges.
type GroupMemberRepository interface {
	// ListByGroup returns member user ids in ascending order.
	ListByGroup(ctx context.Context, groupID int64) ([]int64, error)
	Add(ctx context.Context, member *model.GroupMember) error
	DeleteByGroup(ctx context.Context, groupID int64) error
	// Replace swaps the whole member set of a group.
	Replace(ctx context.Context, groupID int64, userIDs []int64) error
}
