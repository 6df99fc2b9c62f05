package schedule

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var ErrInvalidRecurrence = errors.New("invalid recurrence")

// Recurrence says on which calendar days an offer runs: every day, on the
// listed weekdays, or on the listed dates.
type Recurrence struct {
	Continuous bool
	Weekdays   []time.Weekday
	Dates      []time.Time
}

func Daily() Recurrence { return Recurrence{Continuous: true} }

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseRecurrence accepts "daily" (or "every day"), weekday names and
// YYYY-MM-DD dates, in any mix.
func ParseRecurrence(items []string) (Recurrence, error) {
	var r Recurrence
	for _, raw := range items {
		item := strings.ToLower(strings.TrimSpace(raw))
		switch item {
		case "daily", "every day", "everyday", "continuous":
			r.Continuous = true
			continue
		}
		if wd, ok := weekdayNames[item]; ok {
			if !slices.Contains(r.Weekdays, wd) {
				r.Weekdays = append(r.Weekdays, wd)
			}
			continue
		}
		d, err := ParseDate(item)
		if err != nil {
			return Recurrence{}, fmt.Errorf("%q: %w", raw, ErrInvalidRecurrence)
		}
		r.Dates = append(r.Dates, d)
	}
	if r.IsZero() {
		return Recurrence{}, fmt.Errorf("no days given: %w", ErrInvalidRecurrence)
	}
	return r, nil
}

func (r Recurrence) IsZero() bool {
	return !r.Continuous && len(r.Weekdays) == 0 && len(r.Dates) == 0
}

func (r Recurrence) Includes(date time.Time) bool {
	if r.Continuous {
		return true
	}
	if slices.Contains(r.Weekdays, date.Weekday()) {
		return true
	}
	day := Day(date)
	for _, d := range r.Dates {
		if Day(d).Equal(day) {
			return true
		}
	}
	return false
}

func (r Recurrence) Strings() []string {
	if r.Continuous {
		return []string{"daily"}
	}
	out := make([]string, 0, len(r.Weekdays)+len(r.Dates))
	for _, wd := range r.Weekdays {
		out = append(out, strings.ToLower(wd.String()))
	}
	for _, d := range r.Dates {
		out = append(out, FormatDate(d))
	}
	return out
}
