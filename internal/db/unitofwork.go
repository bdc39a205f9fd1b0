package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// UnitOfWork runs fn inside one transaction. fn receives a DBTX backed by the
// transaction; callers build tx-scoped repositories from it. fn may run more
// than once and must not have effects outside the transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

// DefaultTxAttempts bounds how often a transaction is retried after losing
// the write lock to another connection.
const DefaultTxAttempts = 4

// SQLiteUnitOfWork implements UnitOfWork on database/sql transactions and
// retries transactions that fail with SQLITE_BUSY or SQLITE_LOCKED.
type SQLiteUnitOfWork struct {
	db       *sql.DB
	attempts uint
	wait     time.Duration
}

func NewSQLiteUnitOfWork(db *sql.DB) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{db: db, attempts: DefaultTxAttempts, wait: 20 * time.Millisecond}
}

func (u *SQLiteUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	retry := &backoff.ExponentialBackOff{
		InitialInterval:     u.wait,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         time.Second,
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := u.run(ctx, fn)
		if err != nil && !IsBusy(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(retry), backoff.WithMaxTries(u.attempts))
	return err
}

func (u *SQLiteUnitOfWork) run(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
