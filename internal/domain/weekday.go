package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday numbers days with Monday as 0 and Sunday as 6. Stored values and API
// payloads use this numbering, not time.Weekday's.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Std converts to the standard library's Sunday-first numbering.
func (d Weekday) Std() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// WeekdayOf returns the Monday-first weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// ParseWeekday accepts a day name, its three-letter prefix, or the Monday-first
// number 0..6.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if d := Weekday(n); d.Valid() {
			return d, nil
		}
		return 0, invalid("day_of_week", "must be in 0..6 (0 = Monday), got %d", n)
	}
	if len(s) >= 3 {
		for i, name := range weekdayNames {
			if strings.HasPrefix(strings.ToLower(name), s) {
				return Weekday(i), nil
			}
		}
	}
	return 0, invalid("day_of_week", "unknown weekday %q", s)
}
