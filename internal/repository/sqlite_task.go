package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/db"
	"github.com/alexanderramin/recur/internal/domain"
	"github.com/google/uuid"
)

// SQLiteTaskStore is the local Task Store: it keeps materialized task
// instances in the task_instances table.
type SQLiteTaskStore struct {
	db  db.DBTX
	now func() time.Time
}

// NewSQLiteTaskStore creates a new SQLiteTaskStore.
func NewSQLiteTaskStore(conn db.DBTX) *SQLiteTaskStore {
	return &SQLiteTaskStore{db: conn, now: time.Now}
}

const taskColumns = `id, rule_id, title, occurrence_date, due_date, target_date, client_id, service_id, assigned_to,
	tag_id, priority, created_at`

// CreateTaskInstance inserts t unless the rule already has a task for the
// same occurrence date, and returns the id of whichever task is stored.
func (s *SQLiteTaskStore) CreateTaskInstance(ctx context.Context, t domain.TaskInstance) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Priority == "" {
		t.Priority = domain.DefaultPriority
	}
	query := `INSERT INTO task_instances (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id, occurrence_date) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.RuleID,
		t.Title,
		t.OccurrenceDate.Format(dateLayout),
		t.DueDate.Format(dateLayout),
		t.TargetDate.Format(dateLayout),
		t.ClientID,
		t.ServiceID,
		t.AssignedTo,
		t.TagID,
		string(t.Priority),
		formatTimestamp(t.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("inserting task instance: %w", err)
	}

	var id string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM task_instances WHERE rule_id = ? AND occurrence_date = ?`,
		t.RuleID, t.OccurrenceDate.Format(dateLayout),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("reading task instance id: %w", err)
	}
	return id, nil
}

func (s *SQLiteTaskStore) GetByID(ctx context.Context, id string) (domain.TaskInstance, error) {
	query := `SELECT ` + taskColumns + ` FROM task_instances WHERE id = ?`
	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TaskInstance{}, fmt.Errorf("task instance %s: %w", id, ErrNotFound)
	}
	return t, err
}

// ListByRule returns the rule's task instances by occurrence date. It works
// after the rule itself has been deleted.
func (s *SQLiteTaskStore) ListByRule(ctx context.Context, ruleID string) ([]domain.TaskInstance, error) {
	query := `SELECT ` + taskColumns + ` FROM task_instances WHERE rule_id = ? ORDER BY occurrence_date`
	rows, err := s.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("listing task instances: %w", err)
	}
	defer rows.Close()

	var tasks []domain.TaskInstance
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task instances: %w", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (domain.TaskInstance, error) {
	var (
		t                       domain.TaskInstance
		occurrence, due, target string
		priority, createdAt     string
	)
	err := row.Scan(&t.ID, &t.RuleID, &t.Title, &occurrence, &due, &target,
		&t.ClientID, &t.ServiceID, &t.AssignedTo, &t.TagID, &priority, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TaskInstance{}, err
		}
		return domain.TaskInstance{}, fmt.Errorf("scanning task instance: %w", err)
	}
	t.Priority = domain.Priority(priority)
	if t.OccurrenceDate, err = parseDate(occurrence, "task occurrence_date"); err != nil {
		return domain.TaskInstance{}, err
	}
	if t.DueDate, err = parseDate(due, "task due_date"); err != nil {
		return domain.TaskInstance{}, err
	}
	if t.TargetDate, err = parseDate(target, "task target_date"); err != nil {
		return domain.TaskInstance{}, err
	}
	if t.CreatedAt, err = parseTimestamp(createdAt, "task created_at"); err != nil {
		return domain.TaskInstance{}, err
	}
	return t, nil
}
