package models

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// ClockMinutes parses an HH:MM wall-clock string into minutes since midnight.
func ClockMinutes(value string) (int, error) {
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// TimeRange is a validated [Start,End) interval within a single day.
type TimeRange struct {
	Start int
	End   int
}

// NewTimeRange parses and validates a start/end pair. End must be strictly
// after start.
func NewTimeRange(start, end string) (TimeRange, error) {
	s, err := ClockMinutes(start)
	if err != nil {
		return TimeRange{}, err
	}
	e, err := ClockMinutes(end)
	if err != nil {
		return TimeRange{}, err
	}
	if e <= s {
		return TimeRange{}, fmt.Errorf("end time must be after start time")
	}
	return TimeRange{Start: s, End: e}, nil
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// SessionRange extracts the validated interval from a stored session.
func SessionRange(s GroupSession) (TimeRange, error) {
	return NewTimeRange(s.StartTime, s.EndTime)
}
