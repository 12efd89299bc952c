// Package repotest is the behavioural contract every repository backend must pass.
package repotest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

// Factory returns a UnitOfWorkFactory over empty storage.
type Factory func(t *testing.T) repository.UnitOfWorkFactory

var ignoreTimestamps = cmpopts.IgnoreFields(model.User{}, "CreatedAt", "UpdatedAt")

// Run executes the full contract against the backend produced by newFactory.
func Run(t *testing.T, newFactory Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newFactory) })
	t.Run("Groups", func(t *testing.T) { testGroups(t, newFactory) })
	t.Run("Members", func(t *testing.T) { testMembers(t, newFactory) })
	t.Run("UnitOfWork", func(t *testing.T) { testUnitOfWork(t, newFactory) })
}

// inTx runs fn in a committed unit of work and fails the test on error.
func inTx(t *testing.T, f repository.UnitOfWorkFactory, fn func(ctx context.Context, uow repository.UnitOfWork) error) {
	t.Helper()
	err := repository.WithUnitOfWork(context.Background(), f, fn)
	require.NoError(t, err)
}

// AddUser persists a user and returns it.
func AddUser(t *testing.T, f repository.UnitOfWorkFactory, email, username string) *model.User {
	t.Helper()
	var created *model.User
	inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		created, err = uow.Users().Add(ctx, &model.User{
			Email:    email,
			Username: username,
			Password: "$argon2id$stub",
		})
		return err
	})
	return created
}

// AddGroup persists a group and returns it.
func AddGroup(t *testing.T, f repository.UnitOfWorkFactory, ownerID int64, name string) *model.Group {
	t.Helper()
	var created *model.Group
	inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		created, err = uow.Groups().Add(ctx, &model.Group{Name: name, OwnerID: ownerID})
		return err
	})
	return created
}

func testUsers(t *testing.T, newFactory Factory) {
	t.Run("add and lookup", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		require.Positive(t, alice.ID)
		assert.False(t, alice.EmailVerified)
		assert.False(t, alice.CreatedAt.IsZero())

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			byID, err := uow.Users().Get(ctx, alice.ID)
			require.NoError(t, err)
			if diff := cmp.Diff(alice, byID, ignoreTimestamps); diff != "" {
				t.Errorf("Get mismatch (-want +got):\n%s", diff)
			}

			byEmail, err := uow.Users().GetByEmail(ctx, "alice@example.com")
			require.NoError(t, err)
			require.NotNil(t, byEmail)
			assert.Equal(t, alice.ID, byEmail.ID)

			byName, err := uow.Users().GetByUsername(ctx, "alice")
			require.NoError(t, err)
			require.NotNil(t, byName)
			assert.Equal(t, alice.ID, byName.ID)
			return nil
		})
	})

	t.Run("missing lookups return nil without error", func(t *testing.T) {
		f := newFactory(t)
		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			u, err := uow.Users().Get(ctx, 424242)
			require.NoError(t, err)
			assert.Nil(t, u)

			u, err = uow.Users().GetByEmail(ctx, "nobody@example.com")
			require.NoError(t, err)
			assert.Nil(t, u)

			u, err = uow.Users().GetByUsername(ctx, "nobody")
			require.NoError(t, err)
			assert.Nil(t, u)
			return nil
		})
	})

	t.Run("unique email and username", func(t *testing.T) {
		f := newFactory(t)
		AddUser(t, f, "alice@example.com", "alice")

		for _, tc := range []struct{ email, username string }{
			{"alice@example.com", "other"},
			{"other@example.com", "alice"},
		} {
			err := repository.WithUnitOfWork(context.Background(), f, func(ctx context.Context, uow repository.UnitOfWork) error {
				_, err := uow.Users().Add(ctx, &model.User{Email: tc.email, Username: tc.username, Password: "x"})
				return err
			})
			assert.ErrorIs(t, err, repository.ErrConflict, "email=%s username=%s", tc.email, tc.username)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		bob := AddUser(t, f, "bob@example.com", "bob")

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			changed := alice.Clone()
			changed.EmailVerified = true
			updated, err := uow.Users().Update(ctx, alice.ID, changed)
			require.NoError(t, err)
			assert.True(t, updated.EmailVerified)
			assert.Equal(t, alice.ID, updated.ID)
			return nil
		})

		err := repository.WithUnitOfWork(context.Background(), f, func(ctx context.Context, uow repository.UnitOfWork) error {
			clash := bob.Clone()
			clash.Email = alice.Email
			_, err := uow.Users().Update(ctx, bob.ID, clash)
			return err
		})
		assert.ErrorIs(t, err, repository.ErrConflict)

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			_, err := uow.Users().Update(ctx, 424242, alice)
			assert.ErrorIs(t, err, repository.ErrNotFound)
			assert.ErrorIs(t, uow.Users().Delete(ctx, 424242), repository.ErrNotFound)

			require.NoError(t, uow.Users().Delete(ctx, bob.ID))
			users, err := uow.Users().List(ctx)
			require.NoError(t, err)
			require.Len(t, users, 1)
			assert.Equal(t, alice.ID, users[0].ID)
			assert.True(t, users[0].EmailVerified)
			return nil
		})
	})

	t.Run("list is ordered by id", func(t *testing.T) {
		f := newFactory(t)
		a := AddUser(t, f, "a@example.com", "a")
		b := AddUser(t, f, "b@example.com", "b")
		c := AddUser(t, f, "c@example.com", "c")

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			users, err := uow.Users().List(ctx)
			require.NoError(t, err)
			ids := make([]int64, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, []int64{a.ID, b.ID, c.ID}, ids)
			return nil
		})
	})
}

func testGroups(t *testing.T, newFactory Factory) {
	t.Run("owner and name are unique together", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		bob := AddUser(t, f, "bob@example.com", "bob")

		team := AddGroup(t, f, alice.ID, "Team")
		require.Positive(t, team.ID)
		assert.Equal(t, alice.ID, team.OwnerID)

		err := repository.WithUnitOfWork(context.Background(), f, func(ctx context.Context, uow repository.UnitOfWork) error {
			_, err := uow.Groups().Add(ctx, &model.Group{Name: "Team", OwnerID: alice.ID})
			return err
		})
		assert.ErrorIs(t, err, repository.ErrConflict)

		other := AddGroup(t, f, bob.ID, "Team")
		assert.NotEqual(t, team.ID, other.ID)
	})

	t.Run("lookups", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		bob := AddUser(t, f, "bob@example.com", "bob")
		first := AddGroup(t, f, alice.ID, "First")
		second := AddGroup(t, f, alice.ID, "Second")
		AddGroup(t, f, bob.ID, "Elsewhere")

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			g, err := uow.Groups().Get(ctx, first.ID)
			require.NoError(t, err)
			require.NotNil(t, g)
			assert.Equal(t, "First", g.Name)

			g, err = uow.Groups().GetByOwnerAndName(ctx, alice.ID, "Second")
			require.NoError(t, err)
			require.NotNil(t, g)
			assert.Equal(t, second.ID, g.ID)

			g, err = uow.Groups().GetByOwnerAndName(ctx, bob.ID, "Second")
			require.NoError(t, err)
			assert.Nil(t, g)

			g, err = uow.Groups().Get(ctx, 424242)
			require.NoError(t, err)
			assert.Nil(t, g)

			owned, err := uow.Groups().ListByOwner(ctx, alice.ID)
			require.NoError(t, err)
			require.Len(t, owned, 2)
			assert.Equal(t, first.ID, owned[0].ID)
			assert.Equal(t, second.ID, owned[1].ID)

			all, err := uow.Groups().List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)
			return nil
		})
	})

	t.Run("rename", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		team := AddGroup(t, f, alice.ID, "Team")
		AddGroup(t, f, alice.ID, "Taken")

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			renamed, err := uow.Groups().Update(ctx, team.ID, &model.Group{Name: "Renamed"})
			require.NoError(t, err)
			assert.Equal(t, "Renamed", renamed.Name)
			assert.Equal(t, alice.ID, renamed.OwnerID)

			_, err = uow.Groups().Update(ctx, 424242, &model.Group{Name: "Ghost"})
			assert.ErrorIs(t, err, repository.ErrNotFound)
			return nil
		})

		err := repository.WithUnitOfWork(context.Background(), f, func(ctx context.Context, uow repository.UnitOfWork) error {
			_, err := uow.Groups().Update(ctx, team.ID, &model.Group{Name: "Taken"})
			return err
		})
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("delete cascades members", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		bob := AddUser(t, f, "bob@example.com", "bob")
		team := AddGroup(t, f, alice.ID, "Team")

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			return uow.Members().Replace(ctx, team.ID, []int64{bob.ID})
		})
		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			require.NoError(t, uow.Groups().Delete(ctx, team.ID))
			assert.ErrorIs(t, uow.Groups().Delete(ctx, team.ID), repository.ErrNotFound)

			ids, err := uow.Members().ListByGroup(ctx, team.ID)
			require.NoError(t, err)
			assert.Empty(t, ids)
			return nil
		})
	})
}

func testMembers(t *testing.T, newFactory Factory) {
	t.Run("replace is not a union", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		bob := AddUser(t, f, "bob@example.com", "bob")
		carol := AddUser(t, f, "carol@example.com", "carol")
		team := AddGroup(t, f, alice.ID, "Team")

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			return uow.Members().Replace(ctx, team.ID, []int64{carol.ID, bob.ID})
		})
		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			ids, err := uow.Members().ListByGroup(ctx, team.ID)
			require.NoError(t, err)
			assert.Equal(t, []int64{bob.ID, carol.ID}, ids)
			return uow.Members().Replace(ctx, team.ID, nil)
		})
		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			ids, err := uow.Members().ListByGroup(ctx, team.ID)
			require.NoError(t, err)
			assert.Empty(t, ids)
			return nil
		})
	})

	t.Run("add keeps set semantics", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		bob := AddUser(t, f, "bob@example.com", "bob")
		team := AddGroup(t, f, alice.ID, "Team")

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			edge := &model.GroupMember{GroupID: team.ID, UserID: bob.ID}
			require.NoError(t, uow.Members().Add(ctx, edge))
			require.NoError(t, uow.Members().Add(ctx, edge))

			ids, err := uow.Members().ListByGroup(ctx, team.ID)
			require.NoError(t, err)
			assert.Equal(t, []int64{bob.ID}, ids)
			return nil
		})
	})

	t.Run("unknown user is a reference error", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")
		team := AddGroup(t, f, alice.ID, "Team")

		err := repository.WithUnitOfWork(context.Background(), f, func(ctx context.Context, uow repository.UnitOfWork) error {
			return uow.Members().Replace(ctx, team.ID, []int64{424242})
		})
		assert.ErrorIs(t, err, repository.ErrReference)
	})
}

var errAbort = errors.New("abort")

func testUnitOfWork(t *testing.T, newFactory Factory) {
	t.Run("reads observe earlier writes in the same scope", func(t *testing.T) {
		f := newFactory(t)
		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			created, err := uow.Users().Add(ctx, &model.User{Email: "a@example.com", Username: "a", Password: "x"})
			require.NoError(t, err)
			got, err := uow.Users().Get(ctx, created.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			return nil
		})
	})

	t.Run("error rolls back every repository", func(t *testing.T) {
		f := newFactory(t)
		alice := AddUser(t, f, "alice@example.com", "alice")

		err := repository.WithUnitOfWork(context.Background(), f, func(ctx context.Context, uow repository.UnitOfWork) error {
			if _, err := uow.Users().Add(ctx, &model.User{Email: "b@example.com", Username: "b", Password: "x"}); err != nil {
				return err
			}
			if _, err := uow.Groups().Add(ctx, &model.Group{Name: "Doomed", OwnerID: alice.ID}); err != nil {
				return err
			}
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			u, err := uow.Users().GetByEmail(ctx, "b@example.com")
			require.NoError(t, err)
			assert.Nil(t, u)
			groups, err := uow.Groups().ListByOwner(ctx, alice.ID)
			require.NoError(t, err)
			assert.Empty(t, groups)
			return nil
		})
	})

	t.Run("panic rolls back and re-panics", func(t *testing.T) {
		f := newFactory(t)
		assert.PanicsWithValue(t, "boom", func() {
			_ = repository.WithUnitOfWork(context.Background(), f, func(ctx context.Context, uow repository.UnitOfWork) error {
				_, _ = uow.Users().Add(ctx, &model.User{Email: "p@example.com", Username: "p", Password: "x"})
				panic("boom")
			})
		})

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			u, err := uow.Users().GetByEmail(ctx, "p@example.com")
			require.NoError(t, err)
			assert.Nil(t, u)
			return nil
		})
	})

	t.Run("cancelled context still releases the scope", func(t *testing.T) {
		f := newFactory(t)
		ctx, cancel := context.WithCancel(context.Background())

		err := repository.WithUnitOfWork(ctx, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			cancel()
			return ctx.Err()
		})
		require.ErrorIs(t, err, context.Canceled)

		// A stuck scope would block or fail this one.
		AddUser(t, f, "after@example.com", "after")
	})

	t.Run("terminal calls are idempotent", func(t *testing.T) {
		f := newFactory(t)
		ctx := context.Background()

		uow, err := f.Begin(ctx)
		require.NoError(t, err)
		_, err = uow.Users().Add(ctx, &model.User{Email: "c@example.com", Username: "c", Password: "x"})
		require.NoError(t, err)
		require.NoError(t, uow.Commit(ctx))
		require.NoError(t, uow.Rollback(ctx))
		require.NoError(t, uow.Commit(ctx))

		inTx(t, f, func(ctx context.Context, uow repository.UnitOfWork) error {
			u, err := uow.Users().GetByEmail(ctx, "c@example.com")
			require.NoError(t, err)
			assert.NotNil(t, u, "rollback after commit must not undo the commit")
			return nil
		})
	})
}
