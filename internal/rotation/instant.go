package rotation

import (
	"fmt"
	"math"
	"time"
)

// FlooredMod returns a mod n in [0, n). n must be positive.
func FlooredMod(a, n int64) int64 {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// FloorDiv returns a/n rounded toward negative infinity. n must be positive.
func FloorDiv(a, n int64) int64 {
	q := a / n
	if a%n != 0 && a < 0 {
		q--
	}
	return q
}

// ElapsedUnits returns the number of whole units from ref to now, floored
// toward the past. An instant one nanosecond before ref is unit -1.
func ElapsedUnits(ref, now time.Time, unit time.Duration) (int64, error) {
	if unit <= 0 {
		return 0, fmt.Errorf("%w: unit %v", ErrInvalidSchedule, unit)
	}
	d, err := span(ref, now)
	if err != nil {
		return 0, err
	}
	return FloorDiv(int64(d), int64(unit)), nil
}

// ElapsedMinutes is ElapsedUnits with a one minute unit.
func ElapsedMinutes(ref, now time.Time) (int64, error) {
	return ElapsedUnits(ref, now, time.Minute)
}

// ElapsedWholeDays counts calendar days from ref to now in ref's location,
// minus one when now has not yet reached ref's time of day.
func ElapsedWholeDays(ref, now time.Time) int64 {
	now = now.In(ref.Location())
	days := civilDay(now) - civilDay(ref)
	if clockOf(now).before(clockOf(ref)) {
		days--
	}
	return days
}

// ElapsedWholeMonths counts calendar months from ref to now in ref's
// location, minus one when now's day and time of day are earlier than ref's.
func ElapsedWholeMonths(ref, now time.Time) int64 {
	now = now.In(ref.Location())
	months := int64(now.Year()-ref.Year())*12 + int64(now.Month()-ref.Month())
	if now.Day() < ref.Day() || (now.Day() == ref.Day() && clockOf(now).before(clockOf(ref))) {
		months--
	}
	return months
}

func span(ref, now time.Time) (time.Duration, error) {
	d := now.Sub(ref)
	if d == math.MaxInt64 || d == math.MinInt64 {
		return 0, fmt.Errorf("%w: %s to %s", ErrTemporalRange, ref.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return d, nil
}

// clock is a wall-clock time of day.
type clock struct {
	h, m, s, ns int
}

func clockOf(t time.Time) clock {
	h, m, s := t.Clock()
	return clock{h: h, m: m, s: s, ns: t.Nanosecond()}
}

// clockAt converts an offset from midnight into a clock.
func clockAt(d time.Duration) clock {
	return clock{
		h:  int(d / time.Hour),
		m:  int(d % time.Hour / time.Minute),
		s:  int(d % time.Minute / time.Second),
		ns: int(d % time.Second),
	}
}

func (c clock) before(o clock) bool {
	if c.h != o.h {
		return c.h < o.h
	}
	if c.m != o.m {
		return c.m < o.m
	}
	if c.s != o.s {
		return c.s < o.s
	}
	return c.ns < o.ns
}

// civilDay numbers the calendar date of t, independent of its location.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// localTime returns the instant for a civil date and clock in loc. Day and
// month overflow normalize like time.Date. Wall clocks skipped or repeated by
// a zone transition fail with ErrAmbiguousLocalTime.
func localTime(y int, mo time.Month, d int, c clock, loc *time.Location) (time.Time, error) {
	t := time.Date(y, mo, d, c.h, c.m, c.s, c.ns, loc)
	if clockOf(t) != c {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d:%02d does not exist in %s",
			ErrAmbiguousLocalTime, y, mo, d, c.h, c.m, c.s, loc)
	}
	_, off := t.Zone()
	for _, probe := range []time.Time{t.Add(-12 * time.Hour), t.Add(12 * time.Hour)} {
		_, o := probe.Zone()
		if o == off {
			continue
		}
		alt := t.Add(time.Duration(off-o) * time.Second)
		if _, altOff := alt.Zone(); altOff == o && clockOf(alt) == c && civilDay(alt) == civilDay(t) {
			return time.Time{}, fmt.Errorf("%w: %s occurs twice in %s",
				ErrAmbiguousLocalTime, t.Format("2006-01-02 15:04:05"), loc)
		}
	}
	return t, nil
}
