package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/materialize"
)

func FormatCheckpoint(cp domain.Checkpoint) string {
	var b strings.Builder
	field := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", Dim(fmt.Sprintf("%-17s", label)), value)
	}
	field("last materialized", FormatDate(cp.LastMaterializedDate))
	switch {
	case cp.NeedsReview:
		field("state", StyleRed.Render("needs review"))
	case cp.ConsecutiveFailures > 0:
		field("state", StyleYellow.Render(fmt.Sprintf("backing off (%d failures)", cp.ConsecutiveFailures)))
	default:
		field("state", StyleGreen.Render("ok"))
	}
	if cp.NextAttemptAt != nil {
		field("next attempt", cp.NextAttemptAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	if cp.LastError != "" {
		field("last error", cp.LastError)
	}
	return b.String()
}

// FormatRuleReport renders the outcome of materializing one rule.
func FormatRuleReport(rr materialize.RuleReport) string {
	line := fmt.Sprintf("%s %s: %d created, %d already present",
		OutcomeStyle(rr.Outcome).Render(string(rr.Outcome)), TruncID(rr.RuleID), rr.Created, rr.Seen)
	if rr.Checkpoint != nil {
		line += Dim(" (through " + FormatDate(rr.Checkpoint) + ")")
	}
	if rr.Err != nil {
		line += "\n  " + StyleRed.Render(rr.Err.Error())
	}
	return line + "\n"
}

// FormatRunReport renders a scheduler run summary followed by every rule that
// did not simply succeed.
func FormatRunReport(r materialize.Report) string {
	var b strings.Builder
	b.WriteString(Header("Materialization run") + "\n")
	fmt.Fprintf(&b, "%d rules: %s processed, %s skipped, %s failed, %s flagged\n",
		r.Considered,
		StyleGreen.Render(fmt.Sprint(r.Processed)),
		Dim(fmt.Sprint(r.Skipped)),
		StyleRed.Render(fmt.Sprint(r.Failed)),
		StyleYellow.Render(fmt.Sprint(r.Flagged)))
	fmt.Fprintf(&b, "%d tasks created, %d occurrences already present, took %s\n",
		r.TasksCreated, r.AlreadySeen, r.Duration.Round(time.Millisecond))

	for _, rr := range r.Rules {
		if rr.Outcome == materialize.OutcomeMaterialized && rr.Err == nil {
			continue
		}
		b.WriteString(FormatRuleReport(rr))
	}
	return b.String()
}
