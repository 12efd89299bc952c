package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

type groupRepository struct {
	s   *state
	now func() time.Time
}

// stored returns a copy without members, matching the SQL backend.
func stored(g *model.Group) *model.Group {
	if g == nil {
		return nil
	}
	c := g.Clone()
	c.Members = nil
	return c
}

func (r *groupRepository) Get(ctx context.Context, id int64) (*model.Group, error) {
	return stored(r.s.groups[id]), nil
}

func (r *groupRepository) GetByOwnerAndName(ctx context.Context, ownerID int64, name string) (*model.Group, error) {
	for _, g := range r.s.groups {
		if g.OwnerID == ownerID && g.Name == name {
			return stored(g), nil
		}
	}
	return nil, nil
}

func (r *groupRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Group, error) {
	return r.list(func(g *model.Group) bool { return g.OwnerID == ownerID }), nil
}

func (r *groupRepository) List(ctx context.Context) ([]*model.Group, error) {
	return r.list(func(*model.Group) bool { return true }), nil
}

func (r *groupRepository) list(match func(*model.Group) bool) []*model.Group {
	groups := make([]*model.Group, 0)
	for _, g := range r.s.groups {
		if match(g) {
			groups = append(groups, stored(g))
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

func (r *groupRepository) nameTaken(ownerID int64, name string, skipID int64) bool {
	for id, g := range r.s.groups {
		if id != skipID && g.OwnerID == ownerID && g.Name == name {
			return true
		}
	}
	return false
}

func (r *groupRepository) Add(ctx context.Context, group *model.Group) (*model.Group, error) {
	if _, ok := r.s.users[group.OwnerID]; !ok {
		return nil, fmt.Errorf("%w: user_groups_owner_id_fkey", repository.ErrReference)
	}
	if r.nameTaken(group.OwnerID, group.Name, 0) {
		return nil, fmt.Errorf("%w: user_groups_owner_name_key", repository.ErrConflict)
	}

	now := r.now()
	g := stored(group)
	g.ID = r.s.nextGroupID
	g.CreatedAt = now
	g.UpdatedAt = now
	r.s.nextGroupID++
	r.s.groups[g.ID] = g

	return stored(g), nil
}

func (r *groupRepository) Update(ctx context.Context, id int64, group *model.Group) (*model.Group, error) {
	existing, ok := r.s.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.nameTaken(existing.OwnerID, group.Name, id) {
		return nil, fmt.Errorf("%w: user_groups_owner_name_key", repository.ErrConflict)
	}

	existing.Name = group.Name
	existing.UpdatedAt = r.now()
	return stored(existing), nil
}

func (r *groupRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.groups[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.groups, id)
	delete(r.s.members, id)
	return nil
}
