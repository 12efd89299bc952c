package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/rollcall/rollcall/internal/model"
	"github.com/rollcall/rollcall/internal/repository"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every application table and reapplies the migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const drop = `DROP TABLE IF EXISTS group_members, user_groups, users, goose_db_version CASCADE`
	if _, err := pool.Exec(ctx, drop); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return repository.RunMigrations(ctx, db)
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// NewTestUser returns an unsaved user with unique credentials.
func NewTestUser(t testing.TB, prefix string) *model.User {
	t.Helper()
	name := UniqueName(prefix)
	return &model.User{
		Email:    name + "@example.com",
		Username: name,
		Password: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
	}
}

// UniqueName generates a unique identifier-safe name for tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}
