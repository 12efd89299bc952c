//go:build integration

package repository_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rollcall/rollcall/internal/repository/migrations"
	"github.com/rollcall/rollcall/internal/testutil"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	tables := []string{
		"users",
		"user_groups",
		"group_members",
		"goose_db_version",
	}

	for _, table := range tables {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_UsersTableSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	expectedColumns := []string{
		"id",
		"email",
		"username",
		"password",
		"email_verified",
		"created_at",
		"updated_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "users", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in users table", col)
			}
		})
	}
}

func TestIntegrationMigration_GroupConstraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	var ownerID int64
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, username, password)
		VALUES ('owner@example.com', 'owner', 'hash')
		RETURNING id
	`).Scan(&ownerID)
	if err != nil {
		t.Fatalf("insert owner: %v", err)
	}

	// Name length check
	_, err = pool.Exec(ctx, `INSERT INTO user_groups (name, owner_id) VALUES ('ab', $1)`, ownerID)
	if err == nil {
		t.Error("Expected check constraint violation for name < 3 chars")
	}

	var groupID int64
	err = pool.QueryRow(ctx, `INSERT INTO user_groups (name, owner_id) VALUES ('Team', $1) RETURNING id`, ownerID).Scan(&groupID)
	if err != nil {
		t.Fatalf("insert group: %v", err)
	}

	// Unique name per owner
	_, err = pool.Exec(ctx, `INSERT INTO user_groups (name, owner_id) VALUES ('Team', $1)`, ownerID)
	if err == nil {
		t.Error("Expected unique violation for duplicate (owner_id, name)")
	}

	// Members must reference existing users
	_, err = pool.Exec(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, groupID, ownerID+1000)
	if err == nil {
		t.Error("Expected foreign key violation for unknown member")
	}

	if _, err := pool.Exec(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, groupID, ownerID); err != nil {
		t.Fatalf("insert member: %v", err)
	}

	// Deleting the group cascades to its members
	if _, err := pool.Exec(ctx, `DELETE FROM user_groups WHERE id = $1`, groupID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	var remaining int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, groupID).Scan(&remaining); err != nil {
		t.Fatalf("count members: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected members to cascade, %d remain", remaining)
	}
}

func TestIntegrationMigration_RollbackGroups(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		t.Fatalf("set dialect: %v", err)
	}

	if err := goose.DownToContext(ctx, db, ".", 1); err != nil {
		t.Fatalf("migrate down: %v", err)
	}

	for table, want := range map[string]bool{"users": true, "user_groups": false, "group_members": false} {
		exists, err := tableExists(ctx, pool, table)
		if err != nil {
			t.Fatalf("tableExists failed: %v", err)
		}
		if exists != want {
			t.Errorf("after rollback, table %q exists = %v, want %v", table, exists, want)
		}
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
	exists, err := tableExists(ctx, pool, "user_groups")
	if err != nil {
		t.Fatalf("tableExists failed: %v", err)
	}
	if !exists {
		t.Error("user_groups should exist after reapplying migrations")
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, pool
}
