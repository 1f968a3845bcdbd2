package rotation

import (
	"fmt"
	"slices"
	"time"
)

type TermKind int

const (
	Closed TermKind = iota
	FirstDay
	WithinTerm
)

func (k TermKind) String() string {
	switch k {
	case Closed:
		return "closed"
	case FirstDay:
		return "first_day"
	case WithinTerm:
		return "within_term"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Window is an open term, End = Start + span.
type Window struct {
	Start time.Time
	End   time.Time
}

// TermState is the term status at an instant. Window is zero when Closed.
type TermState struct {
	Kind   TermKind
	Window Window
}

// TermWindow opens on fixed days of every month at a fixed time of day and
// stays open for span.
type TermWindow struct {
	days    NonEmpty[int]
	opening clock
	span    time.Duration
	loc     *time.Location
}

// NewTermWindow builds a window set. opening is the offset from midnight.
func NewTermWindow(days []int, opening, span time.Duration, loc *time.Location) (*TermWindow, error) {
	if loc == nil {
		return nil, fmt.Errorf("%w: term window needs a location", ErrInvalidSchedule)
	}
	if span <= 0 {
		return nil, fmt.Errorf("%w: non-positive term span %v", ErrInvalidSchedule, span)
	}
	if opening < 0 || opening >= 24*time.Hour {
		return nil, fmt.Errorf("%w: opening time %v outside a day", ErrInvalidSchedule, opening)
	}
	sorted := slices.Clone(days)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, d := range sorted {
		if d < 1 || d > 31 {
			return nil, fmt.Errorf("%w: opening day %d out of range", ErrInvalidSchedule, d)
		}
	}
	seq, err := NewNonEmpty(sorted)
	if err != nil {
		return nil, fmt.Errorf("%w: no opening days", ErrInvalidSchedule)
	}
	return &TermWindow{days: seq, opening: clockAt(opening), span: span, loc: loc}, nil
}

func (w *TermWindow) Span() time.Duration { return w.span }

// State reports FirstDay when now's date is an opening day, WithinTerm when
// now lies strictly inside an earlier window, and Closed otherwise. When
// windows overlap the latest opening wins.
func (w *TermWindow) State(now time.Time) (TermState, error) {
	now = now.In(w.loc)
	y, m, d := now.Date()
	if slices.Contains(w.days.Slice(), d) {
		start, err := localTime(y, m, d, w.opening, w.loc)
		if err != nil {
			return TermState{}, err
		}
		return TermState{Kind: FirstDay, Window: Window{Start: start, End: start.Add(w.span)}}, nil
	}

	days := w.days.Slice()
	for back := 0; back <= w.lookback(); back++ {
		first := time.Date(y, m-time.Month(back), 1, 0, 0, 0, 0, time.UTC)
		yy, mm, _ := first.Date()
		for i := len(days) - 1; i >= 0; i-- {
			day := days[i]
			if day > daysIn(yy, mm) || (back == 0 && day > d) {
				continue
			}
			start, err := localTime(yy, mm, day, w.opening, w.loc)
			if err != nil {
				return TermState{}, err
			}
			end := start.Add(w.span)
			if start.Before(now) && now.Before(end) {
				return TermState{Kind: WithinTerm, Window: Window{Start: start, End: end}}, nil
			}
		}
	}
	return TermState{Kind: Closed}, nil
}

// lookback is how many earlier months can hold a window still open: any
// opening in month m-k started at least (k-1) shortest months ago.
func (w *TermWindow) lookback() int {
	const shortest = 28 * 24 * time.Hour
	return int((w.span + shortest - 1) / shortest)
}

// openingsThrough numbers the openings whose date is on or before t's date.
// Opening days a month does not have are never counted.
func (w *TermWindow) openingsThrough(t time.Time) int64 {
	y, m, d := t.In(w.loc).Date()
	var n int64
	for _, day := range w.days.Slice() {
		n += monthsHaving(day, y, m)
		if day <= d {
			n++
		}
	}
	return n
}

// monthsHaving counts the months before (y, m) that have the given day,
// relative to year 0.
func monthsHaving(day, y int, m time.Month) int64 {
	var n int64
	switch {
	case day <= 28:
		n = int64(y) * 12
	case day == 29:
		n = int64(y)*11 + leapYearsBefore(int64(y))
	case day == 30:
		n = int64(y) * 11
	default:
		n = int64(y) * 7
	}
	for mm := time.January; mm < m; mm++ {
		if daysIn(y, mm) >= day {
			n++
		}
	}
	return n
}

// leapYearsBefore counts the leap years in [0, y), negative for y < 0.
func leapYearsBefore(y int64) int64 {
	return FloorDiv(y+3, 4) - FloorDiv(y+99, 100) + FloorDiv(y+399, 400)
}

// Openings counts the openings reached between ref's date and now's date;
// negative when now is earlier.
func (w *TermWindow) Openings(ref, now time.Time) int64 {
	return w.openingsThrough(now) - w.openingsThrough(ref)
}

// OpeningCycle rotates items once per term opening.
type OpeningCycle struct {
	ref    time.Time
	window *TermWindow
	items  NonEmpty[Item]
}

func NewOpeningCycle(ref time.Time, window *TermWindow, items []Item) (*OpeningCycle, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: missing reference instant", ErrInvalidSchedule)
	}
	if window == nil {
		return nil, fmt.Errorf("%w: opening cycle needs a term window", ErrInvalidSchedule)
	}
	seq, err := NewNonEmpty(items)
	if err != nil {
		return nil, fmt.Errorf("%w: opening cycle has no items", ErrInvalidSchedule)
	}
	return &OpeningCycle{ref: ref, window: window, items: seq}, nil
}

func (c *OpeningCycle) Window() *TermWindow { return c.window }

func (c *OpeningCycle) Resolve(now time.Time) (ActiveState, error) {
	k := c.window.Openings(c.ref, now)
	n := int64(c.items.Len())
	i := FlooredMod(k, n)
	return ActiveState{
		Current: c.items.At(i),
		Next:    c.items.At(i + 1),
		Index:   int(i),
		Lap:     FloorDiv(k, n),
	}, nil
}
