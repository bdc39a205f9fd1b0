package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/db"
	"github.com/alexanderramin/recur/internal/domain"
)

// ErrAlreadyRecorded is returned by Record when the (rule, occurrence) pair
// is already in the ledger.
var ErrAlreadyRecorded = errors.New("occurrence already recorded")

// SQLiteLedger implements Ledger on the materialization_ledger table. Build it
// on the same transaction as the TaskStore so a record and its task commit
// together.
type SQLiteLedger struct {
	db  db.DBTX
	now func() time.Time
}

// NewSQLiteLedger creates a new SQLiteLedger.
func NewSQLiteLedger(conn db.DBTX) *SQLiteLedger {
	return &SQLiteLedger{db: conn, now: time.Now}
}

func (l *SQLiteLedger) Seen(ctx context.Context, ruleID string, occurrence time.Time) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM materialization_ledger WHERE rule_id = ? AND occurrence_date = ?`,
		ruleID, occurrence.Format(dateLayout),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking ledger: %w", err)
	}
	return n > 0, nil
}

func (l *SQLiteLedger) Record(ctx context.Context, ruleID string, occurrence time.Time, taskID string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO materialization_ledger (rule_id, occurrence_date, task_id, recorded_at) VALUES (?, ?, ?, ?)`,
		ruleID, occurrence.Format(dateLayout), taskID, formatTimestamp(l.now()),
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("rule %s on %s: %w", ruleID, occurrence.Format(dateLayout), ErrAlreadyRecorded)
		}
		return fmt.Errorf("recording occurrence: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) ListByRule(ctx context.Context, ruleID string) ([]domain.LedgerEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT rule_id, occurrence_date, task_id, recorded_at FROM materialization_ledger
		WHERE rule_id = ? ORDER BY occurrence_date`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var occurrence, recordedAt string
		if err := rows.Scan(&e.RuleID, &occurrence, &e.TaskID, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		if e.OccurrenceDate, err = parseDate(occurrence, "ledger occurrence_date"); err != nil {
			return nil, err
		}
		if e.RecordedAt, err = parseTimestamp(recordedAt, "ledger recorded_at"); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger entries: %w", err)
	}
	return entries, nil
}
