package services

import "time"

// CalendarDaysBetween counts calendar-day boundaries from a to b as seen in loc.
// It is negative when b falls on an earlier day than a.
func CalendarDaysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	// Compare in UTC so DST shifts cannot produce 23 or 25 hour days.
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// SameCalendarDay reports whether a and b fall on the same day in loc.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	return CalendarDaysBetween(a, b, loc) == 0
}

// StartOfDay returns local midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// NextMidnight returns the start of the day after t in loc.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// NextStreak computes the streak after a login at now.
// The day after lastLogin extends it, a later day restarts it at 1,
// and the same day leaves it as is. The result is never below 1.
func NextStreak(now time.Time, lastLogin *time.Time, current int, loc *time.Location) int {
	if lastLogin == nil {
		return 1
	}
	switch diff := CalendarDaysBetween(*lastLogin, now, loc); {
	case diff == 1:
		return current + 1
	case diff > 1:
		return 1
	default:
		if current < 1 {
			return 1
		}
		return current
	}
}
