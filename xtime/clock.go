// Package xtime contains time-of-day and weekday helpers that the standard
// time package doesn't provide.
package xtime

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a wall clock time within a day, with second precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses a 24h time in "HH:MM:SS" or "HH:MM" format. Seconds
// default to 0 if omitted.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day '%s': expected HH:MM:SS", s)
	}

	var vals [3]int
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return TimeOfDay{}, fmt.Errorf("invalid time of day '%s': expected HH:MM:SS", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return TimeOfDay{}, fmt.Errorf("invalid time of day '%s': expected HH:MM:SS", s)
		}
		vals[i] = v
	}

	t := TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day '%s': out of range", s)
	}

	return t, nil
}

// String returns the time in "HH:MM:SS" format.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Before reports whether t is earlier in the day than u.
func (t TimeOfDay) Before(u TimeOfDay) bool {
	return t.Seconds() < u.Seconds()
}

// MarshalText implements the encoding.TextMarshaler interface.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	v, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
