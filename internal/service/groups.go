package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rollcall/rollcall/internal/metrics"
	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

// GroupService handles group ownership and membership.
type GroupService struct {
	uow     repository.UnitOfWorkFactory
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewGroupService creates a new GroupService.
func NewGroupService(factory repository.UnitOfWorkFactory, logger *slog.Logger, recorder metrics.Recorder) *GroupService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &GroupService{
		uow:     factory,
		logger:  logger.With("component", "service.groups"),
		metrics: recorder,
	}
}

// CreateGroupInput defines input for creating a group.
type CreateGroupInput struct {
	Name    string
	OwnerID int64
}

// UpdateGroupInput defines the mutable group fields.
type UpdateGroupInput struct {
	Name string
}

func normalizeGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := model.ValidateGroupName(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGroupNameValidation, err)
	}
	return name, nil
}

// CreateGroup creates an empty group owned by input.OwnerID.
func (s *GroupService) CreateGroup(ctx context.Context, input CreateGroupInput) (*model.Group, error) {
	name, err := normalizeGroupName(input.Name)
	if err != nil {
		return nil, err
	}

	var created *model.Group
	err = repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		existing, err := uow.Groups().GetByOwnerAndName(ctx, input.OwnerID, name)
		if err != nil {
			return fmt.Errorf("lookup group: %w", err)
		}
		if existing != nil {
			return ErrGroupAlreadyExists
		}

		created, err = uow.Groups().Add(ctx, &model.Group{Name: name, OwnerID: input.OwnerID})
		switch {
		case errors.Is(err, repository.ErrConflict):
			return ErrGroupAlreadyExists
		case errors.Is(err, repository.ErrReference):
			return ErrUserNotFound
		case err != nil:
			return fmt.Errorf("add group: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created.Members = []int64{}
	s.metrics.IncGroupCreated()
	s.logger.Info("group created", "group_id", created.ID, "owner_id", created.OwnerID)
	return created, nil
}

// ownedGroup loads a group and checks that requesterID owns it.
func ownedGroup(ctx context.Context, uow repository.UnitOfWork, id, requesterID int64) (*model.Group, error) {
	group, err := uow.Groups().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	if !group.IsOwnedBy(requesterID) {
		return nil, ErrGroupOwner
	}
	return group, nil
}

func loadMembers(ctx context.Context, uow repository.UnitOfWork, group *model.Group) error {
	members, err := uow.Members().ListByGroup(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("list group members: %w", err)
	}
	group.Members = model.NormalizeMemberIDs(members)
	return nil
}

// DeleteGroup removes a group and its memberships.
func (s *GroupService) DeleteGroup(ctx context.Context, id, requesterID int64) error {
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		if _, err := ownedGroup(ctx, uow, id, requesterID); err != nil {
			return err
		}
		if err := uow.Members().DeleteByGroup(ctx, id); err != nil {
			return fmt.Errorf("delete group members: %w", err)
		}
		if err := uow.Groups().Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncGroupDeleted()
	s.logger.Info("group deleted", "group_id", id, "owner_id", requesterID)
	return nil
}

// GetOwnerGroups lists the groups owned by ownerID with their members.
func (s *GroupService) GetOwnerGroups(ctx context.Context, ownerID int64) ([]*model.Group, error) {
	var groups []*model.Group
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		groups, err = uow.Groups().ListByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("list groups: %w", err)
		}
		for _, g := range groups {
			if err := loadMembers(ctx, uow, g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []*model.Group{}
	}
	return groups, nil
}

// GetGroupByID returns a group with its members.
func (s *GroupService) GetGroupByID(ctx context.Context, id int64) (*model.Group, error) {
	var group *model.Group
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		group, err = uow.Groups().Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get group: %w", err)
		}
		if group == nil {
			return ErrGroupNotFound
		}
		return loadMembers(ctx, uow, group)
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// CheckGroupExistence reports whether ownerID already has a group called name.
func (s *GroupService) CheckGroupExistence(ctx context.Context, ownerID int64, name string) (bool, error) {
	var exists bool
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		group, err := uow.Groups().GetByOwnerAndName(ctx, ownerID, strings.TrimSpace(name))
		if err != nil {
			return fmt.Errorf("lookup group: %w", err)
		}
		exists = group != nil
		return nil
	})
	return exists, err
}

// UpdateGroupMembers replaces the member set of a group.
// Duplicate ids collapse; every id must name an existing user.
func (s *GroupService) UpdateGroupMembers(ctx context.Context, id, requesterID int64, memberIDs []int64) (*model.Group, error) {
	members := model.NormalizeMemberIDs(memberIDs)

	var group *model.Group
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		group, err = ownedGroup(ctx, uow, id, requesterID)
		if err != nil {
			return err
		}

		for _, userID := range members {
			user, err := uow.Users().Get(ctx, userID)
			if err != nil {
				return fmt.Errorf("get member: %w", err)
			}
			if user == nil {
				return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
			}
		}

		err = uow.Members().Replace(ctx, id, members)
		if errors.Is(err, repository.ErrReference) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("replace group members: %w", err)
		}
		group.Members = members
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncGroupMembersReplaced()
	s.logger.Info("group members replaced", "group_id", id, "members", len(members))
	return group, nil
}

// UpdateGroup renames a group.
func (s *GroupService) UpdateGroup(ctx context.Context, id, requesterID int64, input UpdateGroupInput) (*model.Group, error) {
	name, err := normalizeGroupName(input.Name)
	if err != nil {
		return nil, err
	}

	var group *model.Group
	err = repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		group, err = ownedGroup(ctx, uow, id, requesterID)
		if err != nil {
			return err
		}

		if group.Name != name {
			existing, err := uow.Groups().GetByOwnerAndName(ctx, group.OwnerID, name)
			if err != nil {
				return fmt.Errorf("lookup group: %w", err)
			}
			if existing != nil {
				return ErrGroupAlreadyExists
			}

			group.Name = name
			group, err = uow.Groups().Update(ctx, id, group)
			switch {
			case errors.Is(err, repository.ErrConflict):
				return ErrGroupAlreadyExists
			case errors.Is(err, repository.ErrNotFound):
				return ErrGroupNotFound
			case err != nil:
				return fmt.Errorf("update group: %w", err)
			}
		}

		return loadMembers(ctx, uow, group)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncGroupUpdated()
	return group, nil
}
