package schedule

import (
	"fmt"
	"strings"
	"time"
)

const (
	layoutFraction = "15:04:05.999999999"
	layoutSeconds  = "15:04:05"
)

// TimeOfDay is a wall-clock time stored as the offset from midnight.
type TimeOfDay time.Duration

// At returns a TimeOfDay from its components. It does not validate.
func At(hour, minute, second, nanos int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second +
		time.Duration(nanos))
}

// ParseTimeOfDay accepts exactly two forms: HH:MM:SS.ffffff (any 1-9
// fractional digits) and HH:MM:SS. The fractional form is tried first.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	t, err := time.Parse(layoutFraction, s)
	if err != nil || !strings.Contains(s, ".") {
		t, err = time.Parse(layoutSeconds, s)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q (want HH:MM:SS or HH:MM:SS.ffffff)", ErrInvalidTime, raw)
	}
	return Of(t), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for constants; it panics on error.
func MustParseTimeOfDay(raw string) TimeOfDay {
	tod, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return tod
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return At(h, m, s, t.Nanosecond())
}

func (t TimeOfDay) Before(u TimeOfDay) bool { return t < u }
func (t TimeOfDay) After(u TimeOfDay) bool  { return t > u }

// On returns the instant with this time of day on the date of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(time.Duration(t))
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ns := d - s*time.Second
	if ns == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, ns/time.Microsecond)
}
