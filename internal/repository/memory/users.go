package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

type userRepository struct {
	s   *state
	now func() time.Time
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	return r.s.users[id].Clone(), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email }), nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username }), nil
}

func (r *userRepository) find(match func(*model.User) bool) *model.User {
	for _, u := range r.s.users {
		if match(u) {
			return u.Clone()
		}
	}
	return nil
}

// conflict reports the unique key user would collide on, ignoring skipID.
func (r *userRepository) conflict(user *model.User, skipID int64) string {
	for id, u := range r.s.users {
		if id == skipID {
			continue
		}
		if u.Email == user.Email {
			return "users_email_key"
		}
		if u.Username == user.Username {
			return "users_username_key"
		}
	}
	return ""
}

func (r *userRepository) Add(ctx context.Context, user *model.User) (*model.User, error) {
	if key := r.conflict(user, 0); key != "" {
		return nil, fmt.Errorf("%w: %s", repository.ErrConflict, key)
	}

	now := r.now()
	stored := user.Clone()
	stored.ID = r.s.nextUserID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.s.nextUserID++
	r.s.users[stored.ID] = stored

	return stored.Clone(), nil
}

func (r *userRepository) Update(ctx context.Context, id int64, user *model.User) (*model.User, error) {
	existing, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if key := r.conflict(user, id); key != "" {
		return nil, fmt.Errorf("%w: %s", repository.ErrConflict, key)
	}

	updated := user.Clone()
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = r.now()
	r.s.users[id] = updated

	return updated.Clone(), nil
}

// Delete removes the user with the same cascades as the SQL schema.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)

	for groupID, g := range r.s.groups {
		if g.OwnerID == id {
			delete(r.s.groups, groupID)
			delete(r.s.members, groupID)
		}
	}
	for _, set := range r.s.members {
		delete(set, id)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	users := make([]*model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, u.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}
