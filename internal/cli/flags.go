package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/spf13/pflag"
)

// dateValue is a YYYY-MM-DD flag.
type dateValue struct{ t *time.Time }

var _ pflag.Value = (*dateValue)(nil)

func newDateValue(p *time.Time) *dateValue { return &dateValue{t: p} }

func (v *dateValue) String() string {
	if v.t == nil || v.t.IsZero() {
		return ""
	}
	return v.t.Format(domain.DateLayout)
}

func (v *dateValue) Set(s string) error {
	t, err := domain.ParseDate(s)
	if err != nil {
		return fmt.Errorf("must be YYYY-MM-DD")
	}
	*v.t = t
	return nil
}

func (v *dateValue) Type() string { return "date" }

// weekdayValue accepts a day name or 0..6 and stores the Monday-first number.
type weekdayValue struct{ p **int }

var _ pflag.Value = (*weekdayValue)(nil)

func (v *weekdayValue) String() string {
	if v.p == nil || *v.p == nil {
		return ""
	}
	return domain.Weekday(**v.p).String()
}

func (v *weekdayValue) Set(s string) error {
	d, err := domain.ParseWeekday(s)
	if err != nil {
		return err
	}
	n := int(d)
	*v.p = &n
	return nil
}

func (v *weekdayValue) Type() string { return "weekday" }

// optionalInt is an int flag that stays nil unless given.
type optionalInt struct{ p **int }

var _ pflag.Value = (*optionalInt)(nil)

func (v *optionalInt) String() string {
	if v.p == nil || *v.p == nil {
		return ""
	}
	return strconv.Itoa(**v.p)
}

func (v *optionalInt) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	*v.p = &n
	return nil
}

func (v *optionalInt) Type() string { return "int" }

// ruleFlags are shared by `rule add` and `rule update`. Only flags the user
// set are applied to a draft.
type ruleFlags struct {
	title       string
	description string
	frequency   string
	interval    int
	dayOfWeek   *int
	dayOfMonth  *int
	weekOfMonth *int
	start       time.Time
	due         int
	target      int
	active      bool
	priority    string
	createdBy   string
	assignedTo  string
	client      string
	service     string
	tag         string
}

func (f *ruleFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.title, "title", "", "Task title")
	fs.StringVar(&f.description, "description", "", "Task description")
	fs.StringVar(&f.frequency, "frequency", "", "daily, weekly, monthly or yearly")
	fs.IntVar(&f.interval, "interval", 1, "Repeat every N periods")
	fs.Var(&weekdayValue{p: &f.dayOfWeek}, "weekday", "Weekday for weekly rules or with --week-of-month (mon..sun or 0..6)")
	fs.Var(&optionalInt{p: &f.dayOfMonth}, "day-of-month", "Day of month (1-31, clamped to the month's last day)")
	fs.Var(&optionalInt{p: &f.weekOfMonth}, "week-of-month", "Ordinal week (1-4), used with --weekday")
	fs.Var(newDateValue(&f.start), "start", "First date the rule may fire (YYYY-MM-DD)")
	fs.IntVar(&f.due, "due-offset", 0, "Due date offset in days from the occurrence")
	fs.IntVar(&f.target, "target-offset", 0, "Target date offset in days from the occurrence")
	fs.BoolVar(&f.active, "active", true, "Whether the scheduler materializes the rule")
	fs.StringVar(&f.priority, "priority", "", "P1..P4 (default P3)")
	fs.StringVar(&f.createdBy, "created-by", "", "Creating team member ID")
	fs.StringVar(&f.assignedTo, "assignee", "", "Assigned team member ID")
	fs.StringVar(&f.client, "client", "", "Client ID")
	fs.StringVar(&f.service, "service", "", "Service ID")
	fs.StringVar(&f.tag, "tag", "", "Tag ID")
}

// apply overlays the flags the user set onto d. Changing the frequency drops
// the previous anchor fields so they cannot leak into the new variant.
func (f *ruleFlags) apply(d *domain.RuleDraft, fs *pflag.FlagSet) {
	set := fs.Changed
	if set("frequency") {
		d.Frequency = f.frequency
		d.DayOfWeek, d.DayOfMonth, d.WeekOfMonth = nil, nil, nil
	}
	if set("title") {
		d.Title = f.title
	}
	if set("description") {
		d.Description = f.description
	}
	if set("interval") || d.Interval == 0 {
		d.Interval = f.interval
	}
	if set("weekday") {
		d.DayOfWeek = f.dayOfWeek
	}
	if set("day-of-month") {
		d.DayOfMonth = f.dayOfMonth
	}
	if set("week-of-month") {
		d.WeekOfMonth = f.weekOfMonth
	}
	if set("start") {
		d.StartDate = f.start
	}
	if set("due-offset") {
		d.DueDateOffset = f.due
	}
	if set("target-offset") {
		d.TargetDateOffset = f.target
	}
	if set("active") {
		active := f.active
		d.IsActive = &active
	}
	if set("priority") {
		d.Priority = domain.Priority(f.priority)
	}
	if set("created-by") {
		d.CreatedBy = f.createdBy
	}
	if set("assignee") {
		d.AssignedTo = f.assignedTo
	}
	if set("client") {
		d.ClientID = f.client
	}
	if set("service") {
		d.ServiceID = f.service
	}
	if set("tag") {
		d.TagID = f.tag
	}
}
