package contentqueue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tomorrowPattern = regexp.MustCompile(`^tomorrow\s+(\d{1,2})\s*(am|pm)$`)

// Layouts accepted without an explicit offset; interpreted in the queue timezone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseScheduleTime parses an operator-supplied publish time.
//
// Accepted forms: RFC 3339, a local date-time without offset, or
// "tomorrow <N>am|pm" relative to now in loc.
func ParseScheduleTime(input string, now time.Time, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidScheduleTime)
	}

	if m := tomorrowPattern.FindStringSubmatch(strings.ToLower(raw)); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err != nil || hour < 1 || hour > 12 {
			return time.Time{}, fmt.Errorf("%w: hour must be 1-12 in %q", ErrInvalidScheduleTime, input)
		}
		hour %= 12
		if m[2] == "pm" {
			hour += 12
		}
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc), nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q (use ISO time or \"tomorrow 9am\")", ErrInvalidScheduleTime, input)
}
