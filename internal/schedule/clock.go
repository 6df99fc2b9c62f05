package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/transpool/internal/models"
)

const MinutesPerDay = 24 * 60

var ErrInvalidTime = errors.New("invalid time")

// Clock is a time of day in minutes since midnight.
type Clock int

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q: %v", ErrInvalidTime, s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On anchors the clock to the given calendar day.
func (c Clock) On(date time.Time) time.Time {
	return Day(date).Add(time.Duration(c) * time.Minute)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidTime, s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(models.DateLayout)
}
