package contentqueue

import (
	"time"

	"github.com/bissquit/contentq/internal/domain"
)

const (
	// PublishHour is the local hour every daily slot starts at.
	PublishHour = 9

	// MaxSearchDays bounds the forward walk for a free date.
	MaxSearchDays = 365

	dateKeyLayout = "2006-01-02"
)

// OccupiedDates is a set of calendar dates (YYYY-MM-DD) already holding a scheduled item.
type OccupiedDates map[string]struct{}

// Add marks the calendar date of t in loc as occupied.
func (o OccupiedDates) Add(t time.Time, loc *time.Location) {
	o[DateKey(t, loc)] = struct{}{}
}

// Has reports whether the calendar date of t in loc is occupied.
func (o OccupiedDates) Has(t time.Time, loc *time.Location) bool {
	_, ok := o[DateKey(t, loc)]
	return ok
}

// DateKey formats the calendar date of t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateKeyLayout)
}

// NextSlot returns the first daily publish instant strictly after now whose
// calendar date is not occupied. Dates are evaluated in the timezone of cfg.
//
// When no free date exists within MaxSearchDays the result is tomorrow's slot
// without any uniqueness guarantee.
func NextSlot(now time.Time, occupied OccupiedDates, cfg domain.SpacingConfig) time.Time {
	loc := cfg.Location()
	local := now.In(loc)

	candidate := slotOn(local.Year(), local.Month(), local.Day(), loc)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	for i := 0; i < MaxSearchDays; i++ {
		if !occupied.Has(candidate, loc) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}

	return slotOn(local.Year(), local.Month(), local.Day()+1, loc)
}

func slotOn(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, PublishHour, 0, 0, 0, loc)
}

// dayBounds returns [start of day, start of next day) for now in loc.
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
