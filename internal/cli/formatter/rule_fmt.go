package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/recurrence"
	"github.com/alexanderramin/recur/internal/service"
)

// FormatRuleList renders rules as a table inside a box.
func FormatRuleList(rules []domain.RuleSpec) string {
	if len(rules) == 0 {
		return Dim("No recurring rules yet. Create one with `recur rule add`.")
	}
	headers := []string{"ID", "TITLE", "SCHEDULE", "START", "PRI", "STATUS"}
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{
			TruncID(r.ID),
			r.Title,
			recurrence.Describe(r),
			r.StartDate.Format(domain.DateLayout),
			PriorityStyle(r.Priority).Render(string(r.Priority)),
			ActiveIndicator(r.IsActive),
		})
	}
	return RenderBox(fmt.Sprintf("Recurring rules (%d)", len(rules)), strings.TrimRight(RenderTable(headers, rows), "\n"))
}

// FormatRuleDetail renders a rule with resolved names, upcoming dates and,
// when known, the scheduler checkpoint.
func FormatRuleDetail(desc service.RuleDescription, cp *domain.Checkpoint, today time.Time) string {
	r := desc.Rule
	var b strings.Builder

	field := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", Dim(fmt.Sprintf("%-10s", label)), value)
	}
	field("id", r.ID)
	field("version", fmt.Sprintf("%d", r.Version))
	field("schedule", Bold(desc.Schedule))
	field("start", r.StartDate.Format(domain.DateLayout))
	field("offsets", fmt.Sprintf("due %s, target %s days", signed(r.DueDateOffset), signed(r.TargetDateOffset)))
	field("status", ActiveIndicator(r.IsActive))
	field("priority", PriorityStyle(r.Priority).Render(string(r.Priority)))
	field("client", orDash(desc.Client))
	field("service", orDash(desc.Service))
	field("assignee", orDash(desc.Assignee))
	field("tag", orDash(desc.Tag))
	field("creator", orDash(desc.Creator))
	if r.Description != "" {
		b.WriteString("\n" + r.Description + "\n")
	}

	if cp != nil {
		b.WriteString("\n" + Header("Scheduler") + "\n")
		b.WriteString(FormatCheckpoint(*cp))
	}

	if len(desc.Next) > 0 {
		b.WriteString("\n" + Header("Upcoming") + "\n")
		b.WriteString(FormatOccurrences(desc.Next, today))
	}
	return RenderBox(r.Title, strings.TrimRight(b.String(), "\n"))
}

// FormatOccurrences renders computed occurrences with their resolved dates.
func FormatOccurrences(occs []domain.Occurrence, today time.Time) string {
	if len(occs) == 0 {
		return Dim("No occurrences in this window.") + "\n"
	}
	headers := []string{"OCCURS", "DAY", "DUE", "TARGET", "WHEN"}
	rows := make([][]string, 0, len(occs))
	for _, o := range occs {
		rows = append(rows, []string{
			o.OccurrenceDate.Format(domain.DateLayout),
			domain.WeekdayOf(o.OccurrenceDate).String()[:3],
			o.DueDate.Format(domain.DateLayout),
			o.TargetDate.Format(domain.DateLayout),
			Dim(RelativeDay(o.OccurrenceDate, today)),
		})
	}
	return RenderTable(headers, rows)
}

// FormatTasks renders materialized task instances.
func FormatTasks(tasks []domain.TaskInstance) string {
	if len(tasks) == 0 {
		return Dim("No tasks materialized for this rule.") + "\n"
	}
	headers := []string{"TASK", "OCCURS", "DUE", "TARGET", "PRI", "ASSIGNEE"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			TruncID(t.ID),
			t.OccurrenceDate.Format(domain.DateLayout),
			t.DueDate.Format(domain.DateLayout),
			t.TargetDate.Format(domain.DateLayout),
			PriorityStyle(t.Priority).Render(string(t.Priority)),
			orDash(t.AssignedTo),
		})
	}
	return RenderTable(headers, rows)
}
