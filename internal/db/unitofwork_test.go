package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/recur/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *db.SQLiteUnitOfWork {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	// Create a simple test table outside the migration set.
	_, err = database.Exec(`CREATE TABLE IF NOT EXISTS uow_test (id TEXT PRIMARY KEY, val TEXT)`)
	require.NoError(t, err)

	return db.NewSQLiteUnitOfWork(database)
}

func readVal(uow *db.SQLiteUnitOfWork, id string) (string, bool) {
	var val string
	var found bool
	_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		row := tx.QueryRowContext(ctx, `SELECT val FROM uow_test WHERE id = ?`, id)
		if err := row.Scan(&val); err != nil {
			return nil
		}
		found = true
		return nil
	})
	return val, found
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO uow_test (id, val) VALUES (?, ?)`, "k1", "v1")
		return err
	})
	require.NoError(t, err)

	val, found := readVal(uow, "k1")
	assert.True(t, found, "row should exist after commit")
	assert.Equal(t, "v1", val)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO uow_test (id, val) VALUES (?, ?)`, "k2", "v2")
		if err != nil {
			return err
		}
		return fmt.Errorf("deliberate failure")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliberate failure")

	_, found := readVal(uow, "k2")
	assert.False(t, found, "row should not exist after rollback")
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	uow := openTestDB(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO uow_test (id, val) VALUES (?, ?)`, "k3", "v3")
			panic("boom")
		})
	})

	_, found := readVal(uow, "k3")
	assert.False(t, found, "row should not exist after panic rollback")
}

func TestWithinTx_DoesNotRetryOrdinaryErrors(t *testing.T) {
	uow := openTestDB(t)
	var calls atomic.Int32

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		calls.Add(1)
		return errors.New("constraint broke")
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWithinTx_RetriesWhileWriteLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.db")
	holder, err := db.OpenDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { holder.Close() })
	_, err = holder.Exec(`CREATE TABLE uow_test (id TEXT PRIMARY KEY, val TEXT)`)
	require.NoError(t, err)

	// No busy_timeout on this handle, so contention surfaces as SQLITE_BUSY at once.
	contender, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { contender.Close() })

	lock, err := holder.Begin()
	require.NoError(t, err)
	_, err = lock.Exec(`INSERT INTO uow_test (id, val) VALUES ('held', 'x')`)
	require.NoError(t, err)
	release := time.AfterFunc(30*time.Millisecond, func() { _ = lock.Commit() })
	defer release.Stop()

	var calls atomic.Int32
	uow := db.NewSQLiteUnitOfWork(contender)
	err = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		calls.Add(1)
		_, err := tx.ExecContext(ctx, `INSERT INTO uow_test (id, val) VALUES ('k4', 'v4')`)
		return err
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(2), "first attempt should hit the held lock")

	var val string
	require.NoError(t, contender.QueryRow(`SELECT val FROM uow_test WHERE id = 'k4'`).Scan(&val))
	assert.Equal(t, "v4", val)
}
