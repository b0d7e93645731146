package progress

import (
	"math"
	"time"
)

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// NextStreak applies one login at now to a streak of current days last
// extended on lastDate. It returns the new count and the streak date to store.
//
// A login on the same calendar day as lastDate leaves the streak alone, the
// following day extends it, and any larger gap restarts it at 1.
func NextStreak(current int, lastDate *time.Time, now time.Time, loc *time.Location) (int, time.Time) {
	today := StartOfDay(now, loc)
	if lastDate == nil {
		return 1, today
	}

	last := StartOfDay(*lastDate, loc)
	days := int(math.Round(today.Sub(last).Hours() / 24))

	switch {
	case days <= 0:
		// Same day, or a clock that went backwards.
		return current, last
	case days == 1:
		return current + 1, today
	default:
		return 1, today
	}
}
