package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

type groupMemberRepository struct {
	s   *state
	now func() time.Time
}

func (r *groupMemberRepository) ListByGroup(ctx context.Context, groupID int64) ([]int64, error) {
	ids := make([]int64, 0, len(r.s.members[groupID]))
	for userID := range r.s.members[groupID] {
		ids = append(ids, userID)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *groupMemberRepository) Add(ctx context.Context, member *model.GroupMember) error {
	if err := r.checkRefs(member.GroupID, []int64{member.UserID}); err != nil {
		return err
	}
	set, ok := r.s.members[member.GroupID]
	if !ok {
		set = make(map[int64]time.Time)
		r.s.members[member.GroupID] = set
	}
	if _, exists := set[member.UserID]; !exists {
		set[member.UserID] = r.now()
	}
	return nil
}

func (r *groupMemberRepository) DeleteByGroup(ctx context.Context, groupID int64) error {
	delete(r.s.members, groupID)
	return nil
}

func (r *groupMemberRepository) Replace(ctx context.Context, groupID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		delete(r.s.members, groupID)
		return nil
	}
	if err := r.checkRefs(groupID, userIDs); err != nil {
		return err
	}
	now := r.now()
	set := make(map[int64]time.Time, len(userIDs))
	for _, id := range userIDs {
		set[id] = now
	}
	r.s.members[groupID] = set
	return nil
}

// checkRefs mirrors the foreign keys on group_members.
func (r *groupMemberRepository) checkRefs(groupID int64, userIDs []int64) error {
	if _, ok := r.s.groups[groupID]; !ok {
		return fmt.Errorf("%w: group_members_group_id_fkey", repository.ErrReference)
	}
	for _, id := range userIDs {
		if _, ok := r.s.users[id]; !ok {
			return fmt.Errorf("%w: group_members_user_id_fkey", repository.ErrReference)
		}
	}
	return nil
}
