package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rollcall/rollcall/internal/model"
)

const groupColumns = `id, name, owner_id, created_at, updated_at`

type groupRepository struct {
	db querier
}

func scanGroup(row pgx.Row) (*model.Group, error) {
	var group model.Group
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.OwnerID,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) queryGroups(ctx context.Context, query string, args ...any) ([]*model.Group, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]*model.Group, 0)
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// Get retrieves a group by id.
func (r *groupRepository) Get(ctx context.Context, id int64) (*model.Group, error) {
	group, err := scanGroup(r.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM user_groups WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group by ID: %w", err)
	}
	return group, nil
}

// GetByOwnerAndName retrieves the owner's group with the given name.
func (r *groupRepository) GetByOwnerAndName(ctx context.Context, ownerID int64, name string) (*model.Group, error) {
	group, err := scanGroup(r.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM user_groups WHERE owner_id = $1 AND name = $2`, ownerID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group by owner and name: %w", err)
	}
	return group, nil
}

// ListByOwner returns the owner's groups ordered by id.
func (r *groupRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Group, error) {
	groups, err := r.queryGroups(ctx,
		`SELECT `+groupColumns+` FROM user_groups WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups by owner: %w", err)
	}
	return groups, nil
}

// Add inserts a group and returns it with generated fields set.
func (r *groupRepository) Add(ctx context.Context, group *model.Group) (*model.Group, error) {
	query := `
		INSERT INTO user_groups (name, owner_id)
		VALUES ($1, $2)
		RETURNING ` + groupColumns

	created, err := scanGroup(r.db.QueryRow(ctx, query, group.Name, group.OwnerID))
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", translateError(err))
	}
	return created, nil
}

// Update overwrites the group name. The owner is immutable.
func (r *groupRepository) Update(ctx context.Context, id int64, group *model.Group) (*model.Group, error) {
	query := `
		UPDATE user_groups
		SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + groupColumns

	updated, err := scanGroup(r.db.QueryRow(ctx, query, id, group.Name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update group: %w", translateError(err))
	}
	return updated, nil
}

// Delete removes a group. Member rows cascade.
func (r *groupRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM user_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all groups ordered by id.
func (r *groupRepository) List(ctx context.Context) ([]*model.Group, error) {
	groups, err := r.queryGroups(ctx, `SELECT `+groupColumns+` FROM user_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}
