package subscriptions

import (
	"time"

	"github.com/beetopic/backend/internal/models"
)

// EndOfDay returns the last instant of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}

// AddMonths adds n calendar months to t. The day of month is clamped to the
// last day of the target month, so Jan 31 + 1 month is Feb 28 (or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	idx := int(m) - 1 + n
	ty := y + idx/12
	tm := idx % 12
	if tm < 0 {
		tm += 12
		ty--
	}
	month := time.Month(tm + 1)
	if last := daysIn(ty, month); d > last {
		d = last
	}
	return time.Date(ty, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddTerm adds count units of freq to t using calendar arithmetic.
func AddTerm(t time.Time, freq models.CouponFrequency, count int) time.Time {
	if freq == models.FrequencyYearly {
		return AddMonths(t, 12*count)
	}
	return AddMonths(t, count)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
