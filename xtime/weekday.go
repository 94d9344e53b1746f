package xtime

import (
	"fmt"
	"strings"
	"time"
)

// Days is a set of weekdays.
type Days uint8

// Individual weekdays, in week order starting on Monday.
const (
	Monday Days = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday

	EveryDay = Monday | Tuesday | Wednesday | Thursday | Friday | Saturday | Sunday
)

var dayTokens = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// ParseDays parses one or more weekday tokens into a set. Each value may itself
// be a comma-separated list. Tokens are case-insensitive, and both short
// ("mon") and full ("monday") names are accepted. Duplicates are collapsed.
func ParseDays(values ...string) (Days, error) {
	var d Days
	for _, v := range values {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.ToLower(strings.TrimSpace(tok))
			if tok == "" {
				continue
			}
			day, err := parseDay(tok)
			if err != nil {
				return 0, err
			}
			d |= day
		}
	}

	return d, nil
}

func parseDay(tok string) (Days, error) {
	for i, short := range dayTokens {
		full := strings.ToLower(weekdayOf(i).String())
		if tok == short || tok == full {
			return 1 << i, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday '%s': expected one of %s", tok, strings.Join(dayTokens[:], ", "))
}

// weekdayOf maps an index in dayTokens to a time.Weekday.
func weekdayOf(i int) time.Weekday {
	return time.Weekday((i + 1) % 7)
}

// Tokens returns the short names of the days in the set, in week order.
func (d Days) Tokens() []string {
	tokens := make([]string, 0, 7)
	for i, tok := range dayTokens {
		if d&(1<<i) != 0 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// String returns the days as a comma-separated list of short names.
func (d Days) String() string {
	return strings.Join(d.Tokens(), ",")
}

// Contains reports whether the set includes the given weekday.
func (d Days) Contains(wd time.Weekday) bool {
	i := (int(wd) + 6) % 7
	return d&(1<<i) != 0
}

// IsEmpty reports whether the set has no days.
func (d Days) IsEmpty() bool {
	return d&EveryDay == 0
}

// IsEveryDay reports whether the set includes all seven days.
func (d Days) IsEveryDay() bool {
	return d&EveryDay == EveryDay
}
