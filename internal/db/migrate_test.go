package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	// A second run must be a no-op.
	err := Migrate(db)
	require.NoError(t, err)

	// Third time for good measure.
	err = Migrate(db)
	require.NoError(t, err)
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	db := openTestDB(t)

	expected := []string{"recurring_rules", "rule_checkpoints", "materialization_ledger", "task_instances", "rule_leases"}
	for _, table := range expected {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_CreatesIndexes(t *testing.T) {
	db := openTestDB(t)

	expected := []string{
		"idx_rules_active",
		"idx_task_instances_due",
		"idx_task_instances_client",
	}
	for _, idx := range expected {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name=?`, idx).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
	}
}

func TestMigrate_LedgerRejectsDuplicateOccurrence(t *testing.T) {
	db := openTestDB(t)

	insert := `INSERT INTO materialization_ledger (rule_id, occurrence_date, task_id, recorded_at) VALUES (?, ?, ?, ?)`
	_, err := db.Exec(insert, "r1", "2025-01-06", "t1", "2025-01-01T00:00:00Z")
	require.NoError(t, err)

	_, err = db.Exec(insert, "r1", "2025-01-06", "t2", "2025-01-01T00:00:00Z")
	assert.Error(t, err, "(rule_id, occurrence_date) must be unique")
}

func TestMigrate_CheckpointCascadesWithRule(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO recurring_rules (id, title, frequency, start_date, created_at, updated_at)
		VALUES ('r1', 'Payroll', 'monthly', '2025-01-01', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO rule_checkpoints (rule_id, updated_at) VALUES ('r1', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM recurring_rules WHERE id = 'r1'`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM rule_checkpoints`).Scan(&n))
	assert.Zero(t, n)
}
