package httpapi

import (
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/materialize"
	"github.com/alexanderramin/recur/internal/recurrence"
	"github.com/alexanderramin/recur/internal/service"
)

type ruleRequest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Frequency        string          `json:"frequency"`
	Interval         *int            `json:"interval"`
	DayOfWeek        *int            `json:"day_of_week"`
	DayOfMonth       *int            `json:"day_of_month"`
	WeekOfMonth      *int            `json:"week_of_month"`
	StartDate        string          `json:"start_date"`
	DueDateOffset    int             `json:"due_date_offset"`
	TargetDateOffset int             `json:"target_date_offset"`
	IsActive         *bool           `json:"is_active"` // nil: active on create, unchanged on update
	CreatedBy        string          `json:"created_by"`
	AssignedTo       string          `json:"assigned_to"`
	ClientID         string          `json:"client_id"`
	ServiceID        string          `json:"service_id"`
	TagID            string          `json:"tag_id"`
	Priority         domain.Priority `json:"priority"`
}

// draft converts the request. A missing interval means 1; a malformed start
// date is reported as a rule validation failure.
func (r ruleRequest) draft() (domain.RuleDraft, error) {
	d := domain.RuleDraft{
		Title:            r.Title,
		Description:      r.Description,
		Frequency:        r.Frequency,
		Interval:         1,
		DayOfWeek:        r.DayOfWeek,
		DayOfMonth:       r.DayOfMonth,
		WeekOfMonth:      r.WeekOfMonth,
		DueDateOffset:    r.DueDateOffset,
		TargetDateOffset: r.TargetDateOffset,
		IsActive:         r.IsActive,
		CreatedBy:        r.CreatedBy,
		AssignedTo:       r.AssignedTo,
		ClientID:         r.ClientID,
		ServiceID:        r.ServiceID,
		TagID:            r.TagID,
		Priority:         r.Priority,
	}
	if r.Interval != nil {
		d.Interval = *r.Interval
	}
	if r.StartDate != "" {
		start, err := domain.ParseDate(r.StartDate)
		if err != nil {
			return domain.RuleDraft{}, &domain.ValidationError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
		}
		d.StartDate = start
	}
	return d, nil
}

type previewRequest struct {
	Rule ruleRequest `json:"rule"`
	From string      `json:"from"`
	To   string      `json:"to"`
}

type ruleDTO struct {
	ID               string          `json:"id"`
	Version          int             `json:"version"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Frequency        string          `json:"frequency"`
	Interval         int             `json:"interval"`
	DayOfWeek        *int            `json:"day_of_week,omitempty"`
	DayOfMonth       *int            `json:"day_of_month,omitempty"`
	WeekOfMonth      *int            `json:"week_of_month,omitempty"`
	Schedule         string          `json:"schedule"`
	StartDate        string          `json:"start_date"`
	DueDateOffset    int             `json:"due_date_offset"`
	TargetDateOffset int             `json:"target_date_offset"`
	IsActive         bool            `json:"is_active"`
	CreatedBy        string          `json:"created_by,omitempty"`
	AssignedTo       string          `json:"assigned_to,omitempty"`
	ClientID         string          `json:"client_id,omitempty"`
	ServiceID        string          `json:"service_id,omitempty"`
	TagID            string          `json:"tag_id,omitempty"`
	Priority         domain.Priority `json:"priority"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

func toRuleDTO(r domain.RuleSpec) ruleDTO {
	f := domain.Fields(r.Frequency)
	return ruleDTO{
		ID:               r.ID,
		Version:          r.Version,
		Title:            r.Title,
		Description:      r.Description,
		Frequency:        string(f.Kind),
		Interval:         f.Interval,
		DayOfWeek:        f.DayOfWeek,
		DayOfMonth:       f.DayOfMonth,
		WeekOfMonth:      f.WeekOfMonth,
		Schedule:         recurrence.Describe(r),
		StartDate:        formatDate(r.StartDate),
		DueDateOffset:    r.DueDateOffset,
		TargetDateOffset: r.TargetDateOffset,
		IsActive:         r.IsActive,
		CreatedBy:        r.CreatedBy,
		AssignedTo:       r.AssignedTo,
		ClientID:         r.ClientID,
		ServiceID:        r.ServiceID,
		TagID:            r.TagID,
		Priority:         r.Priority,
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type namesDTO struct {
	Client   string `json:"client,omitempty"`
	Service  string `json:"service,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	Creator  string `json:"creator,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

type ruleDetailDTO struct {
	Rule       ruleDTO         `json:"rule"`
	Names      namesDTO        `json:"names"`
	Next       []occurrenceDTO `json:"next"`
	Checkpoint *checkpointDTO  `json:"checkpoint,omitempty"`
}

func toRuleDetailDTO(d service.RuleDescription) ruleDetailDTO {
	return ruleDetailDTO{
		Rule: toRuleDTO(d.Rule),
		Names: namesDTO{
			Client:   d.Client,
			Service:  d.Service,
			Assignee: d.Assignee,
			Creator:  d.Creator,
			Tag:      d.Tag,
		},
		Next: toOccurrenceDTOs(d.Next),
	}
}

type occurrenceDTO struct {
	OccurrenceDate string `json:"occurrence_date"`
	DueDate        string `json:"due_date"`
	TargetDate     string `json:"target_date"`
}

func toOccurrenceDTOs(occs []domain.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occs))
	for _, o := range occs {
		out = append(out, occurrenceDTO{
			OccurrenceDate: formatDate(o.OccurrenceDate),
			DueDate:        formatDate(o.DueDate),
			TargetDate:     formatDate(o.TargetDate),
		})
	}
	return out
}

type taskDTO struct {
	ID             string          `json:"id"`
	RuleID         string          `json:"rule_id"`
	Title          string          `json:"title"`
	OccurrenceDate string          `json:"occurrence_date"`
	DueDate        string          `json:"due_date"`
	TargetDate     string          `json:"target_date"`
	ClientID       string          `json:"client_id,omitempty"`
	ServiceID      string          `json:"service_id,omitempty"`
	AssignedTo     string          `json:"assigned_to,omitempty"`
	TagID          string          `json:"tag_id,omitempty"`
	Priority       domain.Priority `json:"priority"`
	CreatedAt      string          `json:"created_at"`
}

func toTaskDTOs(tasks []domain.TaskInstance) []taskDTO {
	out := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskDTO{
			ID:             t.ID,
			RuleID:         t.RuleID,
			Title:          t.Title,
			OccurrenceDate: formatDate(t.OccurrenceDate),
			DueDate:        formatDate(t.DueDate),
			TargetDate:     formatDate(t.TargetDate),
			ClientID:       t.ClientID,
			ServiceID:      t.ServiceID,
			AssignedTo:     t.AssignedTo,
			TagID:          t.TagID,
			Priority:       t.Priority,
			CreatedAt:      t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

type checkpointDTO struct {
	RuleID               string  `json:"rule_id"`
	LastMaterializedDate *string `json:"last_materialized_date,omitempty"`
	ConsecutiveFailures  int     `json:"consecutive_failures"`
	NextAttemptAt        *string `json:"next_attempt_at,omitempty"`
	NeedsReview          bool    `json:"needs_review"`
	LastError            string  `json:"last_error,omitempty"`
}

func toCheckpointDTO(cp domain.Checkpoint) *checkpointDTO {
	out := &checkpointDTO{
		RuleID:              cp.RuleID,
		ConsecutiveFailures: cp.ConsecutiveFailures,
		NeedsReview:         cp.NeedsReview,
		LastError:           cp.LastError,
	}
	if cp.LastMaterializedDate != nil {
		s := formatDate(*cp.LastMaterializedDate)
		out.LastMaterializedDate = &s
	}
	if cp.NextAttemptAt != nil {
		s := cp.NextAttemptAt.UTC().Format(time.RFC3339)
		out.NextAttemptAt = &s
	}
	return out
}

type ruleReportDTO struct {
	RuleID     string  `json:"rule_id"`
	Outcome    string  `json:"outcome"`
	Created    int     `json:"created"`
	Seen       int     `json:"seen"`
	Checkpoint *string `json:"checkpoint,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func toRuleReportDTO(rr materialize.RuleReport) ruleReportDTO {
	out := ruleReportDTO{
		RuleID:  rr.RuleID,
		Outcome: string(rr.Outcome),
		Created: rr.Created,
		Seen:    rr.Seen,
	}
	if rr.Checkpoint != nil {
		s := formatDate(*rr.Checkpoint)
		out.Checkpoint = &s
	}
	if rr.Err != nil {
		out.Error = rr.Err.Error()
	}
	return out
}

type reportDTO struct {
	StartedAt    string          `json:"started_at"`
	DurationMS   int64           `json:"duration_ms"`
	Considered   int             `json:"considered"`
	Processed    int             `json:"processed"`
	Skipped      int             `json:"skipped"`
	Failed       int             `json:"failed"`
	Flagged      int             `json:"flagged"`
	TasksCreated int             `json:"tasks_created"`
	AlreadySeen  int             `json:"already_seen"`
	Rules        []ruleReportDTO `json:"rules"`
}

func toReportDTO(r materialize.Report) reportDTO {
	rules := make([]ruleReportDTO, 0, len(r.Rules))
	for _, rr := range r.Rules {
		rules = append(rules, toRuleReportDTO(rr))
	}
	return reportDTO{
		StartedAt:    r.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:   r.Duration.Milliseconds(),
		Considered:   r.Considered,
		Processed:    r.Processed,
		Skipped:      r.Skipped,
		Failed:       r.Failed,
		Flagged:      r.Flagged,
		TasksCreated: r.TasksCreated,
		AlreadySeen:  r.AlreadySeen,
		Rules:        rules,
	}
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
