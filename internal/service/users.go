package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rollcall/rollcall/internal/auth"
	"github.com/rollcall/rollcall/internal/metrics"
	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

// VerificationQueue accepts verification email jobs without blocking.
type VerificationQueue interface {
	EnqueueAsync(job model.VerificationEmail)
}

type discardQueue struct{}

func (discardQueue) EnqueueAsync(model.VerificationEmail) {}

// UserService handles registration, login and account lookups.
type UserService struct {
	uow          repository.UnitOfWorkFactory
	queue        VerificationQueue
	logger       *slog.Logger
	metrics      metrics.Recorder
	hashPassword func(plain string) (string, error)
}

// NewUserService creates a new UserService.
// A nil queue disables verification emails.
func NewUserService(factory repository.UnitOfWorkFactory, queue VerificationQueue, logger *slog.Logger, recorder metrics.Recorder) *UserService {
	if queue == nil {
		queue = discardQueue{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		uow:          factory,
		queue:        queue,
		logger:       logger.With("component", "service.users"),
		metrics:      recorder,
		hashPassword: auth.HashPassword,
	}
}

// RegisterUserInput defines input for registering a user.
type RegisterUserInput struct {
	Email    string
	Username string
	Password string
}

// CheckUserExistence reports whether the email or the username is taken.
func (s *UserService) CheckUserExistence(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		exists, err = userExists(ctx, uow.Users(), email, username)
		return err
	})
	return exists, err
}

func userExists(ctx context.Context, users repository.UserRepository, email, username string) (bool, error) {
	byEmail, err := users.GetByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("lookup user by email: %w", err)
	}
	if byEmail != nil {
		return true, nil
	}
	byUsername, err := users.GetByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("lookup user by username: %w", err)
	}
	return byUsername != nil, nil
}

// RegisterUser creates an unverified account and queues its verification email.
// Taken emails and usernames are rejected before the password is hashed; the
// check is repeated inside the unit of work and the unique constraints decide
// concurrent registrations.
func (s *UserService) RegisterUser(ctx context.Context, input RegisterUserInput) (*model.User, error) {
	exists, err := s.CheckUserExistence(ctx, input.Email, input.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *model.User
	err = repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		exists, err := userExists(ctx, uow.Users(), input.Email, input.Username)
		if err != nil {
			return err
		}
		if exists {
			return ErrUserAlreadyExists
		}

		created, err = uow.Users().Add(ctx, &model.User{
			Email:    input.Email,
			Username: input.Username,
			Password: hash,
		})
		if errors.Is(err, repository.ErrConflict) {
			return ErrUserAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("add user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncUserRegistered()
	s.logger.Info("user registered", "user_id", created.ID)
	s.queue.EnqueueAsync(model.VerificationEmail{UserID: created.ID, Email: created.Email})

	return created.Sanitize(), nil
}

// LoginUser checks credentials. The identifier is tried as an email first,
// then as a username.
func (s *UserService) LoginUser(ctx context.Context, identifier, password string) (*model.User, error) {
	var user *model.User
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		user, err = uow.Users().GetByEmail(ctx, identifier)
		if err != nil {
			return fmt.Errorf("lookup user by email: %w", err)
		}
		if user != nil {
			return nil
		}
		user, err = uow.Users().GetByUsername(ctx, identifier)
		if err != nil {
			return fmt.Errorf("lookup user by username: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.IncLogin(metrics.LoginUnknownUser)
		return nil, ErrUserNotFound
	}

	ok, err := auth.VerifyPassword(password, user.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.IncLogin(metrics.LoginInvalidPassword)
		return nil, ErrInvalidPassword
	}

	if auth.NeedsRehash(user.Password) {
		s.upgradeHash(ctx, user.ID, password)
	}

	s.metrics.IncLogin(metrics.LoginSuccess)
	return user.Sanitize(), nil
}

// upgradeHash re-encodes a legacy password hash. Failures are logged only.
func (s *UserService) upgradeHash(ctx context.Context, userID int64, password string) {
	hash, err := s.hashPassword(password)
	if err != nil {
		s.logger.Warn("failed to rehash password", "user_id", userID, "error", err)
		return
	}

	err = repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		current, err := uow.Users().Get(ctx, userID)
		if err != nil || current == nil {
			return err
		}
		current.Password = hash
		_, err = uow.Users().Update(ctx, userID, current)
		return err
	})
	if err != nil {
		s.logger.Warn("failed to store upgraded password hash", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("password hash upgraded", "user_id", userID)
}

// AuthenticateUser resolves the user a verified token refers to.
func (s *UserService) AuthenticateUser(ctx context.Context, data model.JWTData) (*model.User, error) {
	return s.getUser(ctx, func(ctx context.Context, users repository.UserRepository) (*model.User, error) {
		return users.Get(ctx, data.UserID)
	})
}

// VerifyUserEmail marks the token's user as verified.
// Verifying an already verified email succeeds without a write.
func (s *UserService) VerifyUserEmail(ctx context.Context, data model.JWTData) (*model.User, error) {
	if data.Purpose != model.PurposeEmailVerification {
		return nil, auth.ErrInvalidToken
	}

	var user *model.User
	var changed bool
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		user, err = uow.Users().Get(ctx, data.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.EmailVerified {
			return nil
		}

		user.EmailVerified = true
		user, err = uow.Users().Update(ctx, user.ID, user)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.IncEmailVerified()
		s.logger.Info("email verified", "user_id", user.ID)
	}
	return user.Sanitize(), nil
}

// GetAllUsers lists every user without password hashes.
func (s *UserService) GetAllUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		users, err = uow.Users().List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		u.Sanitize()
	}
	return users, nil
}

// GetUserByEmail returns the user registered with email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, func(ctx context.Context, users repository.UserRepository) (*model.User, error) {
		return users.GetByEmail(ctx, email)
	})
}

// GetUserByUsername returns the user registered with username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, func(ctx context.Context, users repository.UserRepository) (*model.User, error) {
		return users.GetByUsername(ctx, username)
	})
}

func (s *UserService) getUser(ctx context.Context, lookup func(context.Context, repository.UserRepository) (*model.User, error)) (*model.User, error) {
	var user *model.User
	err := repository.WithUnitOfWork(ctx, s.uow, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		user, err = lookup(ctx, uow.Users())
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}
