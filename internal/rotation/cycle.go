package rotation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Item is one rotating entry. Weight is the slot length in granularity units
// for duration-based cycles, and a day offset for subjects of an offset cycle.
type Item struct {
	ID     string
	Weight int64
}

type Kind int

const (
	FixedDuration Kind = iota + 1
	ElapsedDays
	ElapsedMonths
	ElapsedDaysWithOffset
)

func (k Kind) String() string {
	switch k {
	case FixedDuration:
		return "fixed_duration"
	case ElapsedDays:
		return "elapsed_days"
	case ElapsedMonths:
		return "elapsed_months"
	case ElapsedDaysWithOffset:
		return "elapsed_days_with_offset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed_duration", "duration":
		return FixedDuration, nil
	case "elapsed_days", "days":
		return ElapsedDays, nil
	case "elapsed_months", "months":
		return ElapsedMonths, nil
	case "elapsed_days_with_offset", "day_offset":
		return ElapsedDaysWithOffset, nil
	default:
		return 0, fmt.Errorf("%w: unknown granularity %q", ErrInvalidSchedule, s)
	}
}

// Granularity selects how elapsed time maps to an item index.
// Unit is only meaningful for FixedDuration.
type Granularity struct {
	Kind Kind
	Unit time.Duration
}

func ByDuration(unit time.Duration) Granularity {
	return Granularity{Kind: FixedDuration, Unit: unit}
}

func ByDays() Granularity { return Granularity{Kind: ElapsedDays} }

func ByMonths() Granularity { return Granularity{Kind: ElapsedMonths} }

func ByDayOffset() Granularity { return Granularity{Kind: ElapsedDaysWithOffset} }

func (g Granularity) weighted() bool {
	return g.Kind == FixedDuration || g.Kind == ElapsedDays
}

// ActiveState is the result of resolving a cycle at an instant.
// Remaining and Until are zero when the granularity has no slot end
// (ElapsedMonths).
type ActiveState struct {
	Current   Item
	Next      Item
	Index     int
	Lap       int64
	Remaining time.Duration
	Until     time.Time
}

// Resolver is anything that can name the active item at an instant.
type Resolver interface {
	Resolve(now time.Time) (ActiveState, error)
}

// Cycle is an ordered, non-empty rotation anchored at a reference instant.
type Cycle struct {
	ref   time.Time
	items NonEmpty[Item]
	gran  Granularity
	ends  []int64
	total int64
}

func NewCycle(ref time.Time, items []Item, g Granularity) (*Cycle, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: missing reference instant", ErrInvalidSchedule)
	}
	seq, err := NewNonEmpty(items)
	if err != nil {
		return nil, fmt.Errorf("%w: cycle has no items", ErrInvalidSchedule)
	}
	c := &Cycle{ref: ref, items: seq, gran: g}

	switch g.Kind {
	case FixedDuration:
		if g.Unit <= 0 {
			return nil, fmt.Errorf("%w: non-positive unit %v", ErrInvalidSchedule, g.Unit)
		}
	case ElapsedDays, ElapsedMonths, ElapsedDaysWithOffset:
	default:
		return nil, fmt.Errorf("%w: unknown granularity %v", ErrInvalidSchedule, g.Kind)
	}

	for i, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidSchedule, i)
		}
	}

	if !g.weighted() {
		c.total = int64(seq.Len())
		return c, nil
	}

	c.ends = make([]int64, len(items))
	for i, it := range items {
		if it.Weight <= 0 {
			return nil, fmt.Errorf("%w: item %q has non-positive weight %d", ErrInvalidSchedule, it.ID, it.Weight)
		}
		if c.total > math.MaxInt64-it.Weight {
			return nil, fmt.Errorf("%w: cycle length overflows", ErrInvalidSchedule)
		}
		c.total += it.Weight
		c.ends[i] = c.total
	}
	if g.Kind == FixedDuration && c.total > math.MaxInt64/int64(g.Unit) {
		return nil, fmt.Errorf("%w: cycle length %d x %v overflows", ErrInvalidSchedule, c.total, g.Unit)
	}
	return c, nil
}

func (c *Cycle) Reference() time.Time { return c.ref }

func (c *Cycle) Granularity() Granularity { return c.gran }

func (c *Cycle) Items() []Item { return c.items.Slice() }

func (c *Cycle) Len() int { return c.items.Len() }

// TotalLength is the sum of weights for duration-based cycles and the item
// count otherwise.
func (c *Cycle) TotalLength() int64 { return c.total }

// Resolve returns the active state at now. For offset cycles it is the label
// for a subject with offset zero.
func (c *Cycle) Resolve(now time.Time) (ActiveState, error) {
	switch c.gran.Kind {
	case FixedDuration:
		return c.resolveDuration(now)
	case ElapsedDays:
		return c.resolveDays(now)
	case ElapsedMonths:
		return c.resolveMonths(now), nil
	case ElapsedDaysWithOffset:
		return c.ResolveOffset(now, 0)
	default:
		return ActiveState{}, fmt.Errorf("%w: unknown granularity %v", ErrInvariantViolated, c.gran.Kind)
	}
}

func (c *Cycle) resolveDuration(now time.Time) (ActiveState, error) {
	d, err := span(c.ref, now)
	if err != nil {
		return ActiveState{}, err
	}
	unit := int64(c.gran.Unit)
	offset := FloorDiv(int64(d), unit)
	pos := FlooredMod(offset, c.total)
	i, err := c.locate(pos)
	if err != nil {
		return ActiveState{}, err
	}
	within := time.Duration(FlooredMod(int64(d), unit))
	remaining := time.Duration(c.ends[i]-pos)*c.gran.Unit - within
	st := c.state(i, FloorDiv(offset, c.total))
	st.Remaining = remaining
	st.Until = now.Add(remaining)
	return st, nil
}

func (c *Cycle) resolveDays(now time.Time) (ActiveState, error) {
	offset := ElapsedWholeDays(c.ref, now)
	pos := FlooredMod(offset, c.total)
	i, err := c.locate(pos)
	if err != nil {
		return ActiveState{}, err
	}
	lap := FloorDiv(offset, c.total)
	until, err := c.dayBoundary(lap*c.total + c.ends[i])
	if err != nil {
		return ActiveState{}, err
	}
	st := c.state(i, lap)
	st.Until = until
	st.Remaining = until.Sub(now)
	return st, nil
}

func (c *Cycle) resolveMonths(now time.Time) ActiveState {
	months := ElapsedWholeMonths(c.ref, now)
	i := int(FlooredMod(months, c.total))
	return c.state(i, FloorDiv(months, c.total))
}

// ResolveOffset returns the label active for a subject shifted by offset days.
// Only offset cycles accept it.
func (c *Cycle) ResolveOffset(now time.Time, offset int64) (ActiveState, error) {
	if c.gran.Kind != ElapsedDaysWithOffset {
		return ActiveState{}, fmt.Errorf("%w: offset lookup on %v cycle", ErrInvalidSchedule, c.gran.Kind)
	}
	days := ElapsedWholeDays(c.ref, now)
	k := days + offset
	i := int(FlooredMod(k, c.total))
	until, err := c.dayBoundary(days + 1)
	if err != nil {
		return ActiveState{}, err
	}
	st := c.state(i, FloorDiv(k, c.total))
	st.Until = until
	st.Remaining = until.Sub(now)
	return st, nil
}

// Level pairs a subject with the label it shows.
type Level struct {
	Subject Item
	Label   Item
}

// Levels resolves every subject of an offset cycle; each subject's Weight is
// its offset in days.
func (c *Cycle) Levels(now time.Time, subjects []Item) ([]Level, error) {
	out := make([]Level, 0, len(subjects))
	for _, s := range subjects {
		st, err := c.ResolveOffset(now, s.Weight)
		if err != nil {
			return nil, err
		}
		out = append(out, Level{Subject: s, Label: st.Current})
	}
	return out, nil
}

func (c *Cycle) locate(pos int64) (int, error) {
	for i, end := range c.ends {
		if pos < end {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: position %d outside cycle of length %d", ErrInvariantViolated, pos, c.total)
}

func (c *Cycle) state(i int, lap int64) ActiveState {
	return ActiveState{
		Current: c.items.At(int64(i)),
		Next:    c.items.At(int64(i) + 1),
		Index:   i,
		Lap:     lap,
	}
}

// dayBoundary is the instant days calendar days after the reference date at
// the reference time of day.
func (c *Cycle) dayBoundary(days int64) (time.Time, error) {
	y, m, d := c.ref.Date()
	return localTime(y, m, d+int(days), clockOf(c.ref), c.ref.Location())
}
