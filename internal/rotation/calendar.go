package rotation

import (
	"fmt"
	"slices"
	"time"
)

// CalendarRule matches dates. Every non-empty constraint must hold; Months
// only narrows Days or Weekdays.
type CalendarRule struct {
	Days     []int
	Months   []time.Month
	Weekdays []time.Weekday
}

func (r CalendarRule) validate() error {
	if len(r.Days) == 0 && len(r.Weekdays) == 0 {
		return fmt.Errorf("%w: calendar rule needs days or weekdays", ErrInvalidSchedule)
	}
	for _, d := range r.Days {
		if d < 1 || d > 31 {
			return fmt.Errorf("%w: day %d out of range", ErrInvalidSchedule, d)
		}
	}
	for _, m := range r.Months {
		if m < time.January || m > time.December {
			return fmt.Errorf("%w: month %d out of range", ErrInvalidSchedule, m)
		}
	}
	for _, w := range r.Weekdays {
		if w < time.Sunday || w > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidSchedule, w)
		}
	}
	return nil
}

func (r CalendarRule) Matches(t time.Time) bool {
	if len(r.Months) > 0 && !slices.Contains(r.Months, t.Month()) {
		return false
	}
	if len(r.Days) > 0 && !slices.Contains(r.Days, t.Day()) {
		return false
	}
	if len(r.Weekdays) > 0 && !slices.Contains(r.Weekdays, t.Weekday()) {
		return false
	}
	return true
}

type CalendarEntry struct {
	Item Item
	Rule CalendarRule
}

// CalendarWindow answers which entries apply on a given date.
type CalendarWindow struct {
	entries NonEmpty[CalendarEntry]
	loc     *time.Location
}

// NewCalendarWindow validates entries. Dates are evaluated in loc; a nil loc
// uses the location of each queried instant.
func NewCalendarWindow(entries []CalendarEntry, loc *time.Location) (*CalendarWindow, error) {
	seq, err := NewNonEmpty(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: calendar has no entries", ErrInvalidSchedule)
	}
	for _, e := range entries {
		if e.Item.ID == "" {
			return nil, fmt.Errorf("%w: calendar entry without id", ErrInvalidSchedule)
		}
		if err := e.Rule.validate(); err != nil {
			return nil, fmt.Errorf("calendar entry %q: %w", e.Item.ID, err)
		}
	}
	return &CalendarWindow{entries: seq, loc: loc}, nil
}

// On returns the items whose rule matches t's date, in configuration order.
func (w *CalendarWindow) On(t time.Time) []Item {
	if w.loc != nil {
		t = t.In(w.loc)
	}
	var out []Item
	for _, e := range w.entries.Slice() {
		if e.Rule.Matches(t) {
			out = append(out, e.Item)
		}
	}
	return out
}

// Today is On(now).
func (w *CalendarWindow) Today(now time.Time) []Item { return w.On(now) }

// Tomorrow evaluates the calendar date after now.
func (w *CalendarWindow) Tomorrow(now time.Time) []Item {
	if w.loc != nil {
		now = now.In(w.loc)
	}
	return w.On(now.AddDate(0, 0, 1))
}
