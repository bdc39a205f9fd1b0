package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/db"
	"github.com/alexanderramin/recur/internal/domain"
)

// SQLiteCheckpointRepo implements CheckpointRepo using a SQLite database.
type SQLiteCheckpointRepo struct {
	db db.DBTX
}

// NewSQLiteCheckpointRepo creates a new SQLiteCheckpointRepo.
func NewSQLiteCheckpointRepo(conn db.DBTX) *SQLiteCheckpointRepo {
	return &SQLiteCheckpointRepo{db: conn}
}

const checkpointColumns = `rule_id, last_materialized_date, consecutive_failures, next_attempt_at, needs_review,
	last_error, updated_at`

func (r *SQLiteCheckpointRepo) Get(ctx context.Context, ruleID string) (domain.Checkpoint, error) {
	query := `SELECT ` + checkpointColumns + ` FROM rule_checkpoints WHERE rule_id = ?`
	cp, err := scanCheckpoint(r.db.QueryRowContext(ctx, query, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewCheckpoint(ruleID), nil
	}
	return cp, err
}

func (r *SQLiteCheckpointRepo) List(ctx context.Context) ([]domain.Checkpoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+checkpointColumns+` FROM rule_checkpoints ORDER BY rule_id`)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []domain.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating checkpoints: %w", err)
	}
	return cps, nil
}

// Save upserts cp. Saving the checkpoint of a deleted rule fails on the
// foreign key.
func (r *SQLiteCheckpointRepo) Save(ctx context.Context, cp domain.Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	query := `INSERT INTO rule_checkpoints (` + checkpointColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id) DO UPDATE SET
			last_materialized_date = excluded.last_materialized_date,
			consecutive_failures   = excluded.consecutive_failures,
			next_attempt_at        = excluded.next_attempt_at,
			needs_review           = excluded.needs_review,
			last_error             = excluded.last_error,
			updated_at             = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		cp.RuleID,
		nullableTimeToString(cp.LastMaterializedDate, dateLayout),
		cp.ConsecutiveFailures,
		nullableTimeToString(cp.NextAttemptAt, timestampLayout),
		boolToInt(cp.NeedsReview),
		cp.LastError,
		formatTimestamp(cp.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving checkpoint for rule %s: %w", cp.RuleID, err)
	}
	return nil
}

func scanCheckpoint(row rowScanner) (domain.Checkpoint, error) {
	var (
		cp               domain.Checkpoint
		lastDate, nextAt sql.NullString
		needsReview      int
		updatedAt        string
	)
	err := row.Scan(&cp.RuleID, &lastDate, &cp.ConsecutiveFailures, &nextAt, &needsReview, &cp.LastError, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Checkpoint{}, err
		}
		return domain.Checkpoint{}, fmt.Errorf("scanning checkpoint: %w", err)
	}
	cp.LastMaterializedDate = parseNullableTime(lastDate, dateLayout)
	cp.NextAttemptAt = parseNullableTime(nextAt, timestampLayout)
	cp.NeedsReview = intToBool(needsReview)
	if cp.UpdatedAt, err = parseTimestamp(updatedAt, "checkpoint updated_at"); err != nil {
		return domain.Checkpoint{}, err
	}
	return cp, nil
}
