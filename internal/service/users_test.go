package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rollcall/rollcall/internal/auth"
	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, "alice@example.com", "alice")

	assert.Equal(t, int64(1), user.ID)
	assert.False(t, user.EmailVerified)
	assert.Empty(t, user.Password, "returned user must be sanitized")

	stored := f.storedUser(t, user.ID)
	assert.NotEqual(t, "correct-horse", stored.Password)
	assert.True(t, strings.HasPrefix(stored.Password, "$argon2id$"))

	jobs := f.queue.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, user.ID, jobs[0].UserID)
	assert.Equal(t, "alice@example.com", jobs[0].Email)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().UsersRegistered)
}

func TestRegisterUser_Duplicates(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "alice")

	tests := []struct {
		name     string
		email    string
		username string
	}{
		{"same email", "alice@example.com", "alice2"},
		{"same username", "other@example.com", "alice"},
		{"both", "alice@example.com", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.RegisterUser(context.Background(), RegisterUserInput{
				Email:    tt.email,
				Username: tt.username,
				Password: "correct-horse",
			})
			assert.ErrorIs(t, err, ErrUserAlreadyExists)
		})
	}

	assert.Len(t, f.queue.Jobs(), 1, "failed registrations must not enqueue email")
}

func TestRegisterUser_DuplicateSkipsHashing(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "alice")

	var hashed int
	f.users.hashPassword = func(plain string) (string, error) {
		hashed++
		return "hash:" + plain, nil
	}

	_, err := f.users.RegisterUser(context.Background(), RegisterUserInput{
		Email:    "alice@example.com",
		Username: "alice2",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.Zero(t, hashed, "duplicate registration must not pay for a password hash")

	_, err = f.users.RegisterUser(context.Background(), RegisterUserInput{
		Email:    "bob@example.com",
		Username: "bob",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, hashed)
}

func TestCheckUserExistence(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "alice")
	ctx := context.Background()

	exists, err := f.users.CheckUserExistence(ctx, "alice@example.com", "nobody")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.users.CheckUserExistence(ctx, "nobody@example.com", "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.users.CheckUserExistence(ctx, "nobody@example.com", "nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoginUser(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "alice@example.com", "alice")
	ctx := context.Background()

	t.Run("by email", func(t *testing.T) {
		user, err := f.users.LoginUser(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
		assert.Empty(t, user.Password)
	})

	t.Run("by username", func(t *testing.T) {
		user, err := f.users.LoginUser(ctx, "alice", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.users.LoginUser(ctx, "alice", "wrong-horse")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.users.LoginUser(ctx, "bob", "correct-horse")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	snap := f.metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.LoginsSucceeded)
	assert.Equal(t, uint64(1), snap.LoginsBadPassword)
	assert.Equal(t, uint64(1), snap.LoginsUnknownUser)
}

func TestLoginUser_UpgradesLegacyHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	var id int64
	err = repository.WithUnitOfWork(ctx, f.store, func(ctx context.Context, uow repository.UnitOfWork) error {
		u, err := uow.Users().Add(ctx, &model.User{Email: "old@example.com", Username: "old", Password: string(legacy)})
		if err != nil {
			return err
		}
		id = u.ID
		return nil
	})
	require.NoError(t, err)

	_, err = f.users.LoginUser(ctx, "old", "correct-horse")
	require.NoError(t, err)

	stored := f.storedUser(t, id)
	assert.True(t, strings.HasPrefix(stored.Password, "$argon2id$"), "hash should be upgraded, got %q", stored.Password)

	_, err = f.users.LoginUser(ctx, "old", "correct-horse")
	assert.NoError(t, err, "login must keep working after the upgrade")
}

func TestAuthenticateUser(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com", "alice")
	ctx := context.Background()

	user, err := f.users.AuthenticateUser(ctx, model.JWTData{UserID: alice.ID, Purpose: model.PurposeAccess})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.Password)

	_, err = f.users.AuthenticateUser(ctx, model.JWTData{UserID: 99, Purpose: model.PurposeAccess})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestVerifyUserEmail(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com", "alice")
	ctx := context.Background()
	data := model.JWTData{UserID: alice.ID, Purpose: model.PurposeEmailVerification}

	user, err := f.users.VerifyUserEmail(ctx, data)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.True(t, f.storedUser(t, alice.ID).EmailVerified)

	again, err := f.users.VerifyUserEmail(ctx, data)
	require.NoError(t, err, "re-verification is a no-op")
	assert.True(t, again.EmailVerified)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().EmailsVerified)

	_, err = f.users.VerifyUserEmail(ctx, model.JWTData{UserID: alice.ID, Purpose: model.PurposeAccess})
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))

	_, err = f.users.VerifyUserEmail(ctx, model.JWTData{UserID: 42, Purpose: model.PurposeEmailVerification})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetAllUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	users, err := f.users.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	f.register(t, "alice@example.com", "alice")
	f.register(t, "bob@example.com", "bob")

	users, err = f.users.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.Password)
	}
}

func TestGetUserByEmailAndUsername(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com", "alice")
	ctx := context.Background()

	byEmail, err := f.users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	byName, err := f.users.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	_, err = f.users.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.users.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestNewUserService_NilQueue(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.store, nil, nil, nil)

	_, err := svc.RegisterUser(context.Background(), RegisterUserInput{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct-horse",
	})
	assert.NoError(t, err)
}
