package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/rollcall/rollcall/internal/model"
)

type groupMemberRepository struct {
	db querier
}

// ListByGroup returns member user ids in ascending order.
func (r *groupMemberRepository) ListByGroup(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}
	return ids, nil
}

// Add inserts a single membership edge. Existing edges are kept.
func (r *groupMemberRepository) Add(ctx context.Context, member *model.GroupMember) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, member.GroupID, member.UserID)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", translateError(err))
	}
	return nil
}

// DeleteByGroup removes every member of a group.
func (r *groupMemberRepository) DeleteByGroup(ctx context.Context, groupID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("failed to delete group members: %w", err)
	}
	return nil
}

// Replace swaps the member set in two statements on the same transaction.
func (r *groupMemberRepository) Replace(ctx context.Context, groupID int64, userIDs []int64) error {
	if err := r.DeleteByGroup(ctx, groupID); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	// Sent as a text-format array literal so the server casts it to bigint[].
	ids, err := pq.Array(userIDs).Value()
	if err != nil {
		return fmt.Errorf("encode member ids: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, groupID, ids)
	if err != nil {
		return fmt.Errorf("failed to insert group members: %w", translateError(err))
	}
	return nil
}
