package domain

// FrequencyKind is the storage tag of a Frequency variant.
type FrequencyKind string

const (
	FrequencyDaily   FrequencyKind = "daily"
	FrequencyWeekly  FrequencyKind = "weekly"
	FrequencyMonthly FrequencyKind = "monthly"
	FrequencyYearly  FrequencyKind = "yearly"
)

// MaxWeekOfMonth is the highest ordinal week a monthly rule may name. Every
// month holds at least four of each weekday, so weeks 1..4 always resolve.
const MaxWeekOfMonth = 4

// MaxInterval caps how many periods a rule may skip between occurrences.
// It keeps every step of the calculator well inside int range.
const MaxInterval = 1000

// Frequency is one of Daily, Weekly, Monthly or Yearly. The set is closed:
// variants are built only through the New* constructors, which validate.
type Frequency interface {
	Kind() FrequencyKind
	Interval() int
	// Check re-validates the variant. Values built by the constructors always
	// pass; values restored from storage might not.
	Check() error
	isFrequency()
}

// MonthlyAnchor selects the day within a month: ByDayOfMonth or ByOrdinalWeekday.
type MonthlyAnchor interface {
	check() error
	isMonthlyAnchor()
}

type Daily struct{ interval int }

type Weekly struct {
	interval int
	day      Weekday
}

type Monthly struct {
	interval int
	anchor   MonthlyAnchor
}

type Yearly struct{ interval int }

// ByDayOfMonth fires on a fixed day, clamped to the month's last day.
type ByDayOfMonth struct{ day int }

// ByOrdinalWeekday fires on the n-th (1..4) given weekday of the month.
type ByOrdinalWeekday struct {
	week int
	day  Weekday
}

func NewDaily(interval int) (Daily, error) {
	if err := checkInterval(interval); err != nil {
		return Daily{}, err
	}
	return Daily{interval: interval}, nil
}

func NewWeekly(interval int, day Weekday) (Weekly, error) {
	if err := checkInterval(interval); err != nil {
		return Weekly{}, err
	}
	if err := checkWeekday(day); err != nil {
		return Weekly{}, err
	}
	return Weekly{interval: interval, day: day}, nil
}

func NewMonthlyByDay(interval, dayOfMonth int) (Monthly, error) {
	if err := checkInterval(interval); err != nil {
		return Monthly{}, err
	}
	anchor := ByDayOfMonth{day: dayOfMonth}
	if err := anchor.check(); err != nil {
		return Monthly{}, err
	}
	return Monthly{interval: interval, anchor: anchor}, nil
}

func NewMonthlyByWeekday(interval, weekOfMonth int, day Weekday) (Monthly, error) {
	if err := checkInterval(interval); err != nil {
		return Monthly{}, err
	}
	anchor := ByOrdinalWeekday{week: weekOfMonth, day: day}
	if err := anchor.check(); err != nil {
		return Monthly{}, err
	}
	return Monthly{interval: interval, anchor: anchor}, nil
}

func NewYearly(interval int) (Yearly, error) {
	if err := checkInterval(interval); err != nil {
		return Yearly{}, err
	}
	return Yearly{interval: interval}, nil
}

func (f Daily) Kind() FrequencyKind   { return FrequencyDaily }
func (f Weekly) Kind() FrequencyKind  { return FrequencyWeekly }
func (f Monthly) Kind() FrequencyKind { return FrequencyMonthly }
func (f Yearly) Kind() FrequencyKind  { return FrequencyYearly }

func (f Daily) Interval() int   { return f.interval }
func (f Weekly) Interval() int  { return f.interval }
func (f Monthly) Interval() int { return f.interval }
func (f Yearly) Interval() int  { return f.interval }

func (f Weekly) Day() Weekday           { return f.day }
func (f Monthly) Anchor() MonthlyAnchor { return f.anchor }
func (a ByDayOfMonth) Day() int         { return a.day }
func (a ByOrdinalWeekday) Week() int    { return a.week }
func (a ByOrdinalWeekday) Day() Weekday { return a.day }

func (f Daily) Check() error  { return checkInterval(f.interval) }
func (f Yearly) Check() error { return checkInterval(f.interval) }

func (f Weekly) Check() error {
	if err := checkInterval(f.interval); err != nil {
		return err
	}
	return checkWeekday(f.day)
}

func (f Monthly) Check() error {
	if err := checkInterval(f.interval); err != nil {
		return err
	}
	if f.anchor == nil {
		return invalid("anchor", "exactly one monthly anchor required")
	}
	return f.anchor.check()
}

func (a ByDayOfMonth) check() error {
	if a.day < 1 || a.day > 31 {
		return invalid("day_of_month", "must be in 1..31, got %d", a.day)
	}
	return nil
}

func (a ByOrdinalWeekday) check() error {
	if a.week < 1 || a.week > MaxWeekOfMonth {
		return invalid("week_of_month", "must be in 1..%d, got %d", MaxWeekOfMonth, a.week)
	}
	return checkWeekday(a.day)
}

func (Daily) isFrequency()   {}
func (Weekly) isFrequency()  {}
func (Monthly) isFrequency() {}
func (Yearly) isFrequency()  {}

func (ByDayOfMonth) isMonthlyAnchor()     {}
func (ByOrdinalWeekday) isMonthlyAnchor() {}

func checkInterval(n int) error {
	if n < 1 || n > MaxInterval {
		return invalid("interval", "must be in 1..%d, got %d", MaxInterval, n)
	}
	return nil
}

func checkWeekday(d Weekday) error {
	if !d.Valid() {
		return invalid("day_of_week", "must be in 0..6 (0 = Monday), got %d", int(d))
	}
	return nil
}

// FrequencyFields is the flat column form of a Frequency. Exactly the fields
// the variant uses are non-nil.
type FrequencyFields struct {
	Kind        FrequencyKind
	Interval    int
	DayOfWeek   *int
	DayOfMonth  *int
	WeekOfMonth *int
}

// Fields flattens f for storage or transport.
func Fields(f Frequency) FrequencyFields {
	out := FrequencyFields{Kind: f.Kind(), Interval: f.Interval()}
	switch v := f.(type) {
	case Weekly:
		out.DayOfWeek = intPtr(int(v.day))
	case Monthly:
		switch a := v.anchor.(type) {
		case ByDayOfMonth:
			out.DayOfMonth = intPtr(a.day)
		case ByOrdinalWeekday:
			out.WeekOfMonth = intPtr(a.week)
			out.DayOfWeek = intPtr(int(a.day))
		}
	}
	return out
}

// RestoreFrequency rebuilds a variant from trusted storage without validating
// it. Callers that evaluate the result must call Check first.
func RestoreFrequency(in FrequencyFields) Frequency {
	deref := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}
	switch in.Kind {
	case FrequencyWeekly:
		return Weekly{interval: in.Interval, day: Weekday(deref(in.DayOfWeek))}
	case FrequencyMonthly:
		m := Monthly{interval: in.Interval}
		switch {
		case in.DayOfMonth != nil:
			m.anchor = ByDayOfMonth{day: *in.DayOfMonth}
		case in.WeekOfMonth != nil:
			m.anchor = ByOrdinalWeekday{week: *in.WeekOfMonth, day: Weekday(deref(in.DayOfWeek))}
		}
		return m
	case FrequencyYearly:
		return Yearly{interval: in.Interval}
	default:
		return Daily{interval: in.Interval}
	}
}

func intPtr(v int) *int { return &v }
