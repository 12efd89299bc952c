package repository

import (
	"context"
	"errors"
	"fmt"
)

// UnitOfWork groups repositories that share one transaction.
// Commit and Rollback are terminal: the first call wins and later
// calls of either kind return nil without touching storage.
type UnitOfWork interface {
	Users() UserRepository
	Groups() GroupRepository
	Members() GroupMemberRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory starts units of work against a storage backend.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// WithUnitOfWork runs fn inside a fresh unit of work.
// It commits when fn returns nil and rolls back when fn fails or panics.
// Rollback ignores cancellation of ctx so the transaction is always released.
func WithUnitOfWork(ctx context.Context, factory UnitOfWorkFactory, fn func(ctx context.Context, uow UnitOfWork) error) (err error) {
	uow, err := factory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := uow.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback unit of work: %w", rbErr))
			}
		}
	}()

	if err = fn(ctx, uow); err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}
