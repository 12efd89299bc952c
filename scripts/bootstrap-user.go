package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rollcall/rollcall/internal/auth"
	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

type output struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Created  bool   `json:"created"`
	Token    string `json:"token,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "admin@rollcall.local", "User email")
		username    = flag.String("username", "admin", "Username")
		password    = flag.String("password", os.Getenv("BOOTSTRAP_PASSWORD"), "Password (defaults to $BOOTSTRAP_PASSWORD)")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "Signing secret; when set an access token is printed")
		jwtAlg      = flag.String("jwt-algorithm", "HS256", "Signing algorithm")
		tokenTTL    = flag.Duration("token-ttl", 24*time.Hour, "Access token lifetime")
		migrate     = flag.Bool("migrate", false, "Apply migrations first")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if err := model.ValidateRegistration(*email, *username, *password); err != nil {
		fmt.Fprintln(os.Stderr, "invalid user:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, repository.Options{MaxConns: 2, MinConns: 1})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if *migrate {
		if err := repo.Migrate(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	user, created, err := ensureUser(ctx, repo, *email, *username, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out := output{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Created:  created,
	}

	if *jwtSecret != "" {
		tokens, err := auth.NewTokenManager(*jwtSecret, *jwtAlg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "token manager:", err)
			os.Exit(1)
		}
		out.Token, err = tokens.IssueFor(user.ID, model.PurposeAccess, *tokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "issue token:", err)
			os.Exit(1)
		}
	}

	switch strings.ToLower(*format) {
	case "plain":
		if out.Token != "" {
			fmt.Println(out.Token)
		} else {
			fmt.Println(out.UserID)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureUser returns the verified user for email, creating it when missing.
func ensureUser(ctx context.Context, repo *repository.Repository, email, username, password string) (*model.User, bool, error) {
	var user *model.User
	var created bool

	err := repository.WithUnitOfWork(ctx, repo, func(ctx context.Context, uow repository.UnitOfWork) error {
		existing, err := uow.Users().GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}
		if existing != nil {
			if existing.Username != username {
				return fmt.Errorf("email %s already used by user %s", email, existing.Username)
			}
			user = existing
			if !existing.EmailVerified {
				existing.EmailVerified = true
				user, err = uow.Users().Update(ctx, existing.ID, existing)
				if err != nil {
					return fmt.Errorf("verify user: %w", err)
				}
			}
			return nil
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		user, err = uow.Users().Add(ctx, &model.User{
			Email:         email,
			Username:      username,
			Password:      hash,
			EmailVerified: true,
		})
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("username %s is taken", username)
		}
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user.Sanitize(), created, nil
}
