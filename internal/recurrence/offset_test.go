package recurrence

import (
	"testing"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	occ := d(2025, 3, 1)
	due, target := Resolve(occ, 10, -3)
	assert.Equal(t, d(2025, 3, 11), due)
	assert.Equal(t, d(2025, 2, 26), target)

	due, target = Resolve(occ, 0, 0)
	assert.Equal(t, occ, due)
	assert.Equal(t, occ, target)
}

func TestPreview_OffsetsHoldForEveryOccurrence(t *testing.T) {
	f, err := domain.NewMonthlyByDay(1, 31)
	require.NoError(t, err)
	r := domain.RuleSpec{
		ID:               "r1",
		Frequency:        f,
		StartDate:        d(2024, 1, 1),
		DueDateOffset:    -5,
		TargetDateOffset: 12,
	}

	got, err := Preview(r, NewWindow(d(2024, 1, 1), d(2025, 1, 1)))
	require.NoError(t, err)
	require.Len(t, got, 12)
	for _, o := range got {
		assert.Equal(t, r.DueDateOffset, domain.DaysBetween(o.OccurrenceDate, o.DueDate))
		assert.Equal(t, r.TargetDateOffset, domain.DaysBetween(o.OccurrenceDate, o.TargetDate))
	}
}

func TestUpcoming(t *testing.T) {
	f, err := domain.NewWeekly(1, domain.Friday)
	require.NoError(t, err)
	r := domain.RuleSpec{ID: "r1", Frequency: f, StartDate: d(2025, 1, 1), DueDateOffset: 2}

	got, err := Upcoming(r, d(2025, 1, 4), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d(2025, 1, 10), got[0].OccurrenceDate)
	assert.Equal(t, d(2025, 1, 12), got[0].DueDate)
	assert.Equal(t, d(2025, 1, 17), got[1].OccurrenceDate)
}

func TestDescribe(t *testing.T) {
	mk := func(f domain.Frequency, err error) domain.RuleSpec {
		require.NoError(t, err)
		return domain.RuleSpec{Frequency: f, StartDate: d(2025, 1, 1)}
	}

	tests := []struct {
		rule domain.RuleSpec
		want string
	}{
		{mk(domain.NewDaily(1)), "Every day"},
		{mk(domain.NewDaily(3)), "Every 3 days"},
		{mk(domain.NewWeekly(2, domain.Monday)), "Every 2 weeks on Monday"},
		{mk(domain.NewMonthlyByDay(1, 20)), "Monthly on day 20"},
		{mk(domain.NewMonthlyByDay(3, 31)), "Every 3 months on day 31 (last day in shorter months)"},
		{mk(domain.NewMonthlyByWeekday(1, 2, domain.Wednesday)), "Monthly on the second Wednesday"},
		{mk(domain.NewYearly(1)), "Every year on Jan 1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.rule))
	}

	leap := mk(domain.NewYearly(1))
	leap.StartDate = d(2024, 2, 29)
	assert.Equal(t, "Every year on Feb 29 (Feb 28 in non-leap years)", Describe(leap))
}
