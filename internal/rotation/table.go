package rotation

import (
	"fmt"
	"sort"
	"time"
)

// TableSpec describes one monthly table: the day of month it takes over and
// the titles it rotates through, one per elapsed month.
type TableSpec struct {
	StartDay int
	Items    []Item
}

// Table is a monthly title cycle that becomes active on StartDay.
type Table struct {
	StartDay int
	Cycle    *Cycle
}

// TableSet selects between monthly tables by day of month.
type TableSet struct {
	ref    time.Time
	tables NonEmpty[Table]
}

func NewTableSet(ref time.Time, specs []TableSpec) (*TableSet, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no tables", ErrInvalidSchedule)
	}
	sorted := make([]TableSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartDay < sorted[j].StartDay })

	tables := make([]Table, 0, len(sorted))
	for i, s := range sorted {
		if s.StartDay < 1 || s.StartDay > 31 {
			return nil, fmt.Errorf("%w: table start day %d out of range", ErrInvalidSchedule, s.StartDay)
		}
		if i > 0 && sorted[i-1].StartDay == s.StartDay {
			return nil, fmt.Errorf("%w: duplicate table start day %d", ErrInvalidSchedule, s.StartDay)
		}
		c, err := NewCycle(ref, s.Items, ByMonths())
		if err != nil {
			return nil, fmt.Errorf("table day %d: %w", s.StartDay, err)
		}
		tables = append(tables, Table{StartDay: s.StartDay, Cycle: c})
	}
	seq, err := NewNonEmpty(tables)
	if err != nil {
		return nil, err
	}
	return &TableSet{ref: ref, tables: seq}, nil
}

func (s *TableSet) Tables() []Table { return s.tables.Slice() }

// Select returns the table active at now: the latest table whose start day
// has been reached this month, where reaching the start day also requires
// the reference time of day. Early-month instants fall back to the last table.
func (s *TableSet) Select(now time.Time) Table {
	now = now.In(s.ref.Location())
	day := now.Day()
	reached := !clockOf(now).before(clockOf(s.ref))
	tables := s.tables.Slice()
	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		if t.StartDay < day || (t.StartDay == day && reached) {
			return t
		}
	}
	return s.tables.Last()
}

// Resolve delegates to the selected table's cycle.
func (s *TableSet) Resolve(now time.Time) (ActiveState, error) {
	return s.Select(now).Cycle.Resolve(now)
}
