package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS recurring_rules (
		id                 TEXT PRIMARY KEY,
		version            INTEGER NOT NULL DEFAULT 1,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		frequency          TEXT NOT NULL
		                   CHECK(frequency IN ('daily','weekly','monthly','yearly')),
		interval           INTEGER NOT NULL DEFAULT 1,
		day_of_week        INTEGER,
		day_of_month       INTEGER,
		week_of_month      INTEGER,
		start_date         TEXT NOT NULL,
		due_date_offset    INTEGER NOT NULL DEFAULT 0,
		target_date_offset INTEGER NOT NULL DEFAULT 0,
		is_active          INTEGER NOT NULL DEFAULT 1,
		created_by         TEXT NOT NULL DEFAULT '',
		assigned_to        TEXT NOT NULL DEFAULT '',
		client_id          TEXT NOT NULL DEFAULT '',
		service_id         TEXT NOT NULL DEFAULT '',
		tag_id             TEXT NOT NULL DEFAULT '',
		priority           TEXT NOT NULL DEFAULT 'P3'
		                   CHECK(priority IN ('P1','P2','P3','P4')),
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS rule_checkpoints (
		rule_id                TEXT PRIMARY KEY REFERENCES recurring_rules(id) ON DELETE CASCADE,
		last_materialized_date TEXT,
		consecutive_failures   INTEGER NOT NULL DEFAULT 0,
		next_attempt_at        TEXT,
		needs_review           INTEGER NOT NULL DEFAULT 0,
		last_error             TEXT NOT NULL DEFAULT '',
		updated_at             TEXT NOT NULL
	)`,

	// No foreign key: ledger rows and task instances outlive their rule.
	`CREATE TABLE IF NOT EXISTS materialization_ledger (
		rule_id         TEXT NOT NULL,
		occurrence_date TEXT NOT NULL,
		task_id         TEXT NOT NULL,
		recorded_at     TEXT NOT NULL,
		PRIMARY KEY (rule_id, occurrence_date)
	)`,

	`CREATE TABLE IF NOT EXISTS task_instances (
		id              TEXT PRIMARY KEY,
		rule_id         TEXT NOT NULL,
		title           TEXT NOT NULL,
		occurrence_date TEXT NOT NULL,
		due_date        TEXT NOT NULL,
		target_date     TEXT NOT NULL,
		client_id       TEXT NOT NULL DEFAULT '',
		service_id      TEXT NOT NULL DEFAULT '',
		assigned_to     TEXT NOT NULL DEFAULT '',
		tag_id          TEXT NOT NULL DEFAULT '',
		priority        TEXT NOT NULL DEFAULT 'P3',
		created_at      TEXT NOT NULL,
		UNIQUE (rule_id, occurrence_date)
	)`,

	`CREATE TABLE IF NOT EXISTS rule_leases (
		rule_id    TEXT PRIMARY KEY,
		holder     TEXT NOT NULL,
		expires_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_rules_active ON recurring_rules(is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_task_instances_due ON task_instances(due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_task_instances_client ON task_instances(client_id)`,
}
