package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/db"
)

// expiryLayout is fixed width so expires_at compares lexically.
const expiryLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteLocker keeps leases in the rule_leases table. It is enough for
// workers sharing one database file.
type SQLiteLocker struct {
	db  db.DBTX
	now func() time.Time
}

func NewSQLiteLocker(conn db.DBTX, now func() time.Time) *SQLiteLocker {
	if now == nil {
		now = time.Now
	}
	return &SQLiteLocker{db: conn, now: now}
}

func (l *SQLiteLocker) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	now := l.now().UTC()
	query := `INSERT INTO rule_leases (rule_id, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(rule_id) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE rule_leases.expires_at <= ? OR rule_leases.holder = excluded.holder`
	res, err := l.db.ExecContext(ctx, query, key, holder, now.Add(ttl).Format(expiryLayout), now.Format(expiryLayout))
	if err != nil {
		return false, fmt.Errorf("acquiring lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lease acquisition: %w", err)
	}
	return n > 0, nil
}

func (l *SQLiteLocker) Renew(ctx context.Context, key, holder string, ttl time.Duration) error {
	now := l.now().UTC()
	res, err := l.db.ExecContext(ctx,
		`UPDATE rule_leases SET expires_at = ? WHERE rule_id = ? AND holder = ? AND expires_at > ?`,
		now.Add(ttl).Format(expiryLayout), key, holder, now.Format(expiryLayout))
	if err != nil {
		return fmt.Errorf("renewing lease: %w", err)
	}
	return affectedOrNotHeld(res.RowsAffected())
}

func (l *SQLiteLocker) Release(ctx context.Context, key, holder string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM rule_leases WHERE rule_id = ? AND holder = ?`, key, holder)
	if err != nil {
		return fmt.Errorf("releasing lease: %w", err)
	}
	return affectedOrNotHeld(res.RowsAffected())
}

func affectedOrNotHeld(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
