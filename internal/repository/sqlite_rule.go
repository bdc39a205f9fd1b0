package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/recur/internal/db"
	"github.com/alexanderramin/recur/internal/domain"
)

// SQLiteRuleRepo implements RuleRepo using a SQLite database.
type SQLiteRuleRepo struct {
	db db.DBTX
}

// NewSQLiteRuleRepo creates a new SQLiteRuleRepo.
func NewSQLiteRuleRepo(conn db.DBTX) *SQLiteRuleRepo {
	return &SQLiteRuleRepo{db: conn}
}

const ruleColumns = `id, version, title, description, frequency, interval, day_of_week, day_of_month, week_of_month,
	start_date, due_date_offset, target_date_offset, is_active, created_by, assigned_to, client_id, service_id,
	tag_id, priority, created_at, updated_at`

func (r *SQLiteRuleRepo) Create(ctx context.Context, rule domain.RuleSpec) error {
	f := domain.Fields(rule.Frequency)
	query := `INSERT INTO recurring_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Version,
		rule.Title,
		rule.Description,
		string(f.Kind),
		f.Interval,
		nullableIntToValue(f.DayOfWeek),
		nullableIntToValue(f.DayOfMonth),
		nullableIntToValue(f.WeekOfMonth),
		rule.StartDate.Format(dateLayout),
		rule.DueDateOffset,
		rule.TargetDateOffset,
		boolToInt(rule.IsActive),
		rule.CreatedBy,
		rule.AssignedTo,
		rule.ClientID,
		rule.ServiceID,
		rule.TagID,
		string(rule.Priority),
		formatTimestamp(rule.CreatedAt),
		formatTimestamp(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

func (r *SQLiteRuleRepo) GetByID(ctx context.Context, id string) (domain.RuleSpec, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE id = ?`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RuleSpec{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return rule, err
}

func (r *SQLiteRuleRepo) List(ctx context.Context) ([]domain.RuleSpec, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM recurring_rules ORDER BY created_at, id`)
}

// ListActive returns the scheduler's candidate set. Inactive rules never
// appear in it.
func (r *SQLiteRuleRepo) ListActive(ctx context.Context) ([]domain.RuleSpec, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE is_active = 1 ORDER BY created_at, id`)
}

func (r *SQLiteRuleRepo) list(ctx context.Context, query string) ([]domain.RuleSpec, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.RuleSpec
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// Update overwrites the stored row with a newer version of the rule. Task
// instances already materialized from earlier versions are not touched.
func (r *SQLiteRuleRepo) Update(ctx context.Context, rule domain.RuleSpec) error {
	f := domain.Fields(rule.Frequency)
	query := `UPDATE recurring_rules SET version = ?, title = ?, description = ?, frequency = ?, interval = ?,
		day_of_week = ?, day_of_month = ?, week_of_month = ?, start_date = ?, due_date_offset = ?,
		target_date_offset = ?, is_active = ?, assigned_to = ?, client_id = ?, service_id = ?, tag_id = ?,
		priority = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		rule.Version,
		rule.Title,
		rule.Description,
		string(f.Kind),
		f.Interval,
		nullableIntToValue(f.DayOfWeek),
		nullableIntToValue(f.DayOfMonth),
		nullableIntToValue(f.WeekOfMonth),
		rule.StartDate.Format(dateLayout),
		rule.DueDateOffset,
		rule.TargetDateOffset,
		boolToInt(rule.IsActive),
		rule.AssignedTo,
		rule.ClientID,
		rule.ServiceID,
		rule.TagID,
		string(rule.Priority),
		formatTimestamp(rule.UpdatedAt),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	return requireAffected(res, "rule "+rule.ID)
}

// Delete removes the template only. Its checkpoint goes with it; ledger
// entries and task instances stay.
func (r *SQLiteRuleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	return requireAffected(res, "rule "+id)
}

func scanRule(row rowScanner) (domain.RuleSpec, error) {
	var (
		rule                               domain.RuleSpec
		kind, startDate, priority          string
		createdAt, updatedAt               string
		interval, isActive                 int
		dayOfWeek, dayOfMonth, weekOfMonth sql.NullInt64
	)
	err := row.Scan(
		&rule.ID, &rule.Version, &rule.Title, &rule.Description, &kind, &interval,
		&dayOfWeek, &dayOfMonth, &weekOfMonth,
		&startDate, &rule.DueDateOffset, &rule.TargetDateOffset, &isActive,
		&rule.CreatedBy, &rule.AssignedTo, &rule.ClientID, &rule.ServiceID, &rule.TagID, &priority,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RuleSpec{}, err
		}
		return domain.RuleSpec{}, fmt.Errorf("scanning rule: %w", err)
	}

	rule.Frequency = domain.RestoreFrequency(domain.FrequencyFields{
		Kind:        domain.FrequencyKind(kind),
		Interval:    interval,
		DayOfWeek:   nullIntToPtr(dayOfWeek),
		DayOfMonth:  nullIntToPtr(dayOfMonth),
		WeekOfMonth: nullIntToPtr(weekOfMonth),
	})
	rule.IsActive = intToBool(isActive)
	rule.Priority = domain.Priority(priority)

	if rule.StartDate, err = parseDate(startDate, "rule start_date"); err != nil {
		return domain.RuleSpec{}, err
	}
	if rule.CreatedAt, err = parseTimestamp(createdAt, "rule created_at"); err != nil {
		return domain.RuleSpec{}, err
	}
	if rule.UpdatedAt, err = parseTimestamp(updatedAt, "rule updated_at"); err != nil {
		return domain.RuleSpec{}, err
	}
	return rule, nil
}
