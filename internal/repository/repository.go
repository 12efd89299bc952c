// Package repository provides the storage contracts and the PostgreSQL backend.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Default pool bounds.
const (
	DefaultMaxConns = 10
	DefaultMinConns = 2
)

// Options tunes the connection pool and transactions.
type Options struct {
	MaxConns       int32
	MinConns       int32
	IsolationLevel string
}

// Repository owns the PostgreSQL pool and starts units of work on it.
type Repository struct {
	pool     *pgxpool.Pool
	isoLevel pgx.TxIsoLevel
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string, opts Options) (*Repository, error) {
	isoLevel, err := ParseIsolationLevel(opts.IsolationLevel)
	if err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = DefaultMaxConns
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	config.MinConns = DefaultMinConns
	if opts.MinConns > 0 && opts.MinConns <= config.MaxConns {
		config.MinConns = opts.MinConns
	}
	if config.MinConns > config.MaxConns {
		config.MinConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool, isoLevel: isoLevel}, nil
}

// ParseIsolationLevel maps a configuration value to a pgx isolation level.
// Empty selects the server default of read committed.
func ParseIsolationLevel(level string) (pgx.TxIsoLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "read committed":
		return pgx.ReadCommitted, nil
	case "repeatable read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	case "read uncommitted":
		return pgx.ReadUncommitted, nil
	default:
		return "", fmt.Errorf("unknown isolation level %q", level)
	}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// Begin starts a transaction and binds all repositories to it.
func (r *Repository) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: r.isoLevel})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgUnitOfWork{
		tx:      tx,
		users:   &userRepository{db: tx},
		groups:  &groupRepository{db: tx},
		members: &groupMemberRepository{db: tx},
	}, nil
}

// querier is the subset of pgx.Tx used by the repositories.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgUnitOfWork struct {
	tx      pgx.Tx
	users   *userRepository
	groups  *groupRepository
	members *groupMemberRepository

	mu   sync.Mutex
	done bool
}

func (u *pgUnitOfWork) Users() UserRepository          { return u.users }
func (u *pgUnitOfWork) Groups() GroupRepository        { return u.groups }
func (u *pgUnitOfWork) Members() GroupMemberRepository { return u.members }

func (u *pgUnitOfWork) Commit(ctx context.Context) error {
	if !u.finish() {
		return nil
	}
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (u *pgUnitOfWork) Rollback(ctx context.Context) error {
	if !u.finish() {
		return nil
	}
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// finish marks the unit of work terminal and reports whether this call did so.
func (u *pgUnitOfWork) finish() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return false
	}
	u.done = true
	return true
}

// PostgreSQL error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// translateError maps constraint violations onto the shared storage errors.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrReference, pgErr.ConstraintName)
	default:
		return err
	}
}
