// Package memory is an in-process implementation of the repository contracts.
// A unit of work holds the store lock from Begin until Commit or Rollback,
// so units of work execute one at a time.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

// state is the full contents of the store.
type state struct {
	users       map[int64]*model.User
	groups      map[int64]*model.Group
	members     map[int64]map[int64]time.Time
	nextUserID  int64
	nextGroupID int64
}

func newState() *state {
	return &state{
		users:       make(map[int64]*model.User),
		groups:      make(map[int64]*model.Group),
		members:     make(map[int64]map[int64]time.Time),
		nextUserID:  1,
		nextGroupID: 1,
	}
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[int64]*model.User, len(s.users)),
		groups:      make(map[int64]*model.Group, len(s.groups)),
		members:     make(map[int64]map[int64]time.Time, len(s.members)),
		nextUserID:  s.nextUserID,
		nextGroupID: s.nextGroupID,
	}
	for id, u := range s.users {
		c.users[id] = u.Clone()
	}
	for id, g := range s.groups {
		c.groups[id] = g.Clone()
	}
	for groupID, set := range s.members {
		cs := make(map[int64]time.Time, len(set))
		for userID, at := range set {
			cs[userID] = at
		}
		c.members[groupID] = cs
	}
	return c
}

// Store is a UnitOfWorkFactory backed by maps.
type Store struct {
	lock    chan struct{}
	current *state
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	s := &Store{
		lock:    make(chan struct{}, 1),
		current: newState(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	return s
}

// Begin waits for the store lock and opens a unit of work on a copy of the data.
func (s *Store) Begin(ctx context.Context) (repository.UnitOfWork, error) {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	work := s.current.clone()
	return &unitOfWork{
		store:   s,
		work:    work,
		users:   &userRepository{s: work, now: s.now},
		groups:  &groupRepository{s: work, now: s.now},
		members: &groupMemberRepository{s: work, now: s.now},
	}, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

type unitOfWork struct {
	store   *Store
	work    *state
	users   *userRepository
	groups  *groupRepository
	members *groupMemberRepository

	once sync.Once
}

func (u *unitOfWork) Users() repository.UserRepository          { return u.users }
func (u *unitOfWork) Groups() repository.GroupRepository        { return u.groups }
func (u *unitOfWork) Members() repository.GroupMemberRepository { return u.members }

// Commit publishes the working copy.
func (u *unitOfWork) Commit(ctx context.Context) error {
	u.once.Do(func() {
		u.store.current = u.work
		<-u.store.lock
	})
	return nil
}

// Rollback discards the working copy.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	u.once.Do(func() {
		<-u.store.lock
	})
	return nil
}
