package rotation

import (
	"errors"
	"testing"
	"time"
)

func items(weight int64, ids ...string) []Item {
	out := make([]Item, len(ids))
	for i, id := range ids {
		out[i] = Item{ID: id, Weight: weight}
	}
	return out
}

func defenseCycle(t *testing.T) *Cycle {
	t.Helper()
	c, err := NewCycle(at(2020, 6, 5, 15, 0, 0), items(60,
		"juga1", "tekki1", "zoma1", "ryurin1", "all1",
		"shigoku1", "kyochu1", "kaiyo1", "ryurin2", "all2",
	), ByDuration(time.Minute))
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	return c
}

func TestFixedDurationBoundaries(t *testing.T) {
	t.Parallel()
	c := defenseCycle(t)
	ref := c.Reference()
	total := time.Duration(c.TotalLength()) * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want string
		next string
	}{
		{name: "reference", now: ref, want: "juga1", next: "tekki1"},
		{name: "last second of first slot", now: at(2020, 6, 5, 15, 59, 59), want: "juga1", next: "tekki1"},
		{name: "second slot", now: at(2020, 6, 5, 16, 0, 0), want: "tekki1", next: "zoma1"},
		{name: "last minute of cycle", now: ref.Add(total - time.Minute), want: "all2", next: "juga1"},
		{name: "next lap", now: ref.Add(total), want: "juga1", next: "tekki1"},
		{name: "one second before reference", now: at(2020, 6, 5, 14, 59, 59), want: "all2", next: "juga1"},
		{name: "one slot before reference", now: at(2020, 6, 5, 14, 0, 0), want: "all2", next: "juga1"},
		{name: "just before that slot", now: at(2020, 6, 5, 13, 59, 59), want: "ryurin2", next: "all2"},
		{name: "almost one lap before", now: ref.Add(-(total - time.Minute)), want: "juga1", next: "tekki1"},
		{name: "one lap before", now: ref.Add(-total), want: "juga1", next: "tekki1"},
		{name: "one lap and a nanosecond before", now: ref.Add(-total - time.Nanosecond), want: "all2", next: "juga1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st, err := c.Resolve(tt.now)
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if st.Current.ID != tt.want {
				t.Fatalf("Current = %s, want %s", st.Current.ID, tt.want)
			}
			if st.Next.ID != tt.next {
				t.Fatalf("Next = %s, want %s", st.Next.ID, tt.next)
			}
		})
	}
}

func TestFixedDurationRemainingAndLap(t *testing.T) {
	t.Parallel()
	c := defenseCycle(t)
	ref := c.Reference()

	st, err := c.Resolve(ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if st.Remaining != time.Hour || st.Lap != 0 {
		t.Fatalf("Remaining = %v, Lap = %d, want 1h and 0", st.Remaining, st.Lap)
	}
	if !st.Until.Equal(at(2020, 6, 5, 16, 0, 0)) {
		t.Fatalf("Until = %v, want 16:00", st.Until)
	}

	st, err = c.Resolve(at(2020, 6, 5, 15, 59, 59))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if st.Remaining != time.Second {
		t.Fatalf("Remaining = %v, want 1s", st.Remaining)
	}

	st, err = c.Resolve(at(2020, 6, 5, 14, 30, 0))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if st.Remaining != 30*time.Minute || st.Lap != -1 {
		t.Fatalf("Remaining = %v, Lap = %d, want 30m and -1", st.Remaining, st.Lap)
	}
}

func TestFixedDurationVariableWeights(t *testing.T) {
	t.Parallel()
	ref := at(2024, 1, 1, 0, 0, 0)
	c, err := NewCycle(ref, []Item{{ID: "a", Weight: 30}, {ID: "b", Weight: 90}}, ByDuration(time.Minute))
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{offset: 0, want: "a"},
		{offset: 29 * time.Minute, want: "a"},
		{offset: 30 * time.Minute, want: "b"},
		{offset: 119 * time.Minute, want: "b"},
		{offset: 120 * time.Minute, want: "a"},
		{offset: -time.Second, want: "b"},
		{offset: -90 * time.Minute, want: "b"},
		{offset: -90*time.Minute - time.Second, want: "a"},
	}
	for _, tt := range tests {
		st, err := c.Resolve(ref.Add(tt.offset))
		if err != nil {
			t.Fatalf("Resolve(%v): %v", tt.offset, err)
		}
		if st.Current.ID != tt.want {
			t.Fatalf("Resolve(%v) = %s, want %s", tt.offset, st.Current.ID, tt.want)
		}
	}
}

func TestElapsedDaysRotation(t *testing.T) {
	t.Parallel()
	c, err := NewCycle(at(2025, 2, 1, 6, 0, 0), items(3,
		"jigenryu", "fordina", "dydalmos", "catcher",
		"fulupotea", "pultanus", "elgios", "almana",
	), ByDays())
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	tests := []struct {
		now  time.Time
		want string
	}{
		{now: at(2025, 2, 1, 6, 0, 0), want: "jigenryu"},
		{now: at(2025, 2, 4, 5, 59, 59), want: "jigenryu"},
		{now: at(2025, 2, 4, 6, 0, 0), want: "fordina"},
		{now: at(2025, 2, 7, 5, 59, 59), want: "fordina"},
		{now: at(2025, 2, 7, 6, 0, 0), want: "dydalmos"},
		{now: at(2025, 2, 25, 5, 59, 59), want: "almana"},
		{now: at(2025, 2, 25, 6, 0, 0), want: "jigenryu"},
		{now: at(2025, 2, 1, 5, 59, 59), want: "almana"},
		{now: at(2025, 1, 29, 6, 0, 0), want: "almana"},
		{now: at(2025, 1, 29, 5, 59, 59), want: "elgios"},
		{now: at(2025, 1, 26, 6, 0, 0), want: "elgios"},
		{now: at(2025, 1, 10, 5, 59, 59), want: "jigenryu"},
		{now: at(2025, 1, 8, 6, 0, 0), want: "jigenryu"},
		{now: at(2025, 1, 8, 5, 59, 59), want: "almana"},
	}
	for _, tt := range tests {
		st, err := c.Resolve(tt.now)
		if err != nil {
			t.Fatalf("Resolve(%v): %v", tt.now, err)
		}
		if st.Current.ID != tt.want {
			t.Fatalf("Resolve(%v) = %s, want %s", tt.now, st.Current.ID, tt.want)
		}
	}

	st, err := c.Resolve(at(2025, 2, 5, 12, 0, 0))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !st.Until.Equal(at(2025, 2, 7, 6, 0, 0)) {
		t.Fatalf("Until = %v, want 2025-02-07 06:00", st.Until)
	}
	if st.Remaining != 42*time.Hour {
		t.Fatalf("Remaining = %v, want 42h", st.Remaining)
	}
}

func TestElapsedMonthsRotation(t *testing.T) {
	t.Parallel()
	c, err := NewCycle(at(2020, 7, 10, 6, 0, 0), items(0, "t1", "t2", "t3", "t4", "t5"), ByMonths())
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	tests := []struct {
		now  time.Time
		want string
		lap  int64
	}{
		{now: at(2020, 7, 10, 6, 0, 0), want: "t1", lap: 0},
		{now: at(2020, 11, 10, 6, 0, 0), want: "t5", lap: 0},
		{now: at(2020, 12, 10, 6, 0, 0), want: "t1", lap: 1},
		{now: at(2020, 6, 10, 6, 0, 0), want: "t5", lap: -1},
		{now: at(2020, 2, 10, 6, 0, 0), want: "t1", lap: -1},
		{now: at(2020, 2, 10, 5, 59, 59), want: "t5", lap: -2},
	}
	for _, tt := range tests {
		st, err := c.Resolve(tt.now)
		if err != nil {
			t.Fatalf("Resolve(%v): %v", tt.now, err)
		}
		if st.Current.ID != tt.want || st.Lap != tt.lap {
			t.Fatalf("Resolve(%v) = %s lap %d, want %s lap %d", tt.now, st.Current.ID, st.Lap, tt.want, tt.lap)
		}
		if st.Remaining != 0 || !st.Until.IsZero() {
			t.Fatalf("month cycle reported a slot end: %v %v", st.Remaining, st.Until)
		}
	}
}

func TestOffsetLevels(t *testing.T) {
	t.Parallel()
	c, err := NewCycle(at(2018, 4, 20, 6, 0, 0), items(0, "Ⅰ", "Ⅱ", "Ⅲ"), ByDayOffset())
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	tests := []struct {
		now  time.Time
		want string
	}{
		{now: at(2018, 4, 20, 6, 0, 0), want: "Ⅰ"},
		{now: at(2018, 4, 21, 5, 59, 59), want: "Ⅰ"},
		{now: at(2018, 4, 21, 6, 0, 0), want: "Ⅱ"},
		{now: at(2018, 4, 22, 6, 0, 0), want: "Ⅲ"},
		{now: at(2018, 4, 23, 6, 0, 0), want: "Ⅰ"},
		{now: at(2018, 4, 20, 5, 59, 59), want: "Ⅲ"},
		{now: at(2018, 4, 19, 6, 0, 0), want: "Ⅲ"},
		{now: at(2018, 4, 18, 6, 0, 0), want: "Ⅱ"},
		{now: at(2018, 4, 17, 6, 0, 0), want: "Ⅰ"},
		{now: at(2018, 4, 16, 6, 0, 0), want: "Ⅲ"},
	}
	for _, tt := range tests {
		st, err := c.Resolve(tt.now)
		if err != nil {
			t.Fatalf("Resolve(%v): %v", tt.now, err)
		}
		if st.Current.ID != tt.want {
			t.Fatalf("Resolve(%v) = %s, want %s", tt.now, st.Current.ID, tt.want)
		}
	}

	subjects := []Item{{ID: "regrog", Weight: 0}, {ID: "scorpide", Weight: 2}, {ID: "jelzarg", Weight: 1}, {ID: "minus", Weight: -1}}
	levels, err := c.Levels(at(2018, 4, 20, 6, 0, 0), subjects)
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	want := []string{"Ⅰ", "Ⅲ", "Ⅱ", "Ⅲ"}
	for i, lv := range levels {
		if lv.Label.ID != want[i] {
			t.Fatalf("level of %s = %s, want %s", lv.Subject.ID, lv.Label.ID, want[i])
		}
	}

	st, err := c.ResolveOffset(at(2018, 4, 20, 12, 0, 0), 0)
	if err != nil {
		t.Fatalf("ResolveOffset: %v", err)
	}
	if st.Remaining != 18*time.Hour {
		t.Fatalf("Remaining = %v, want 18h", st.Remaining)
	}
}

func TestPeriodicityAndAnchoring(t *testing.T) {
	t.Parallel()
	ref := at(2022, 3, 1, 6, 0, 0)
	ids := []string{"a", "b", "c", "d"}
	tests := []struct {
		name  string
		g     Granularity
		items []Item
		shift func(time.Time, int) time.Time
	}{
		{
			name:  "duration",
			g:     ByDuration(time.Minute),
			items: items(45, ids...),
			shift: func(t time.Time, k int) time.Time { return t.Add(time.Duration(k*4*45) * time.Minute) },
		},
		{
			name:  "days",
			g:     ByDays(),
			items: items(2, ids...),
			shift: func(t time.Time, k int) time.Time { return t.AddDate(0, 0, k*8) },
		},
		{
			name:  "months",
			g:     ByMonths(),
			items: items(0, ids...),
			shift: func(t time.Time, k int) time.Time { return t.AddDate(0, k*4, 0) },
		},
		{
			name:  "day offset",
			g:     ByDayOffset(),
			items: items(0, ids...),
			shift: func(t time.Time, k int) time.Time { return t.AddDate(0, 0, k*4) },
		},
	}
	probes := []time.Duration{0, time.Nanosecond, 37 * time.Minute, 5 * time.Hour, 49 * time.Hour, -time.Nanosecond, -11 * time.Hour}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewCycle(ref, tt.items, tt.g)
			if err != nil {
				t.Fatalf("NewCycle: %v", err)
			}
			st, err := c.Resolve(ref)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if st.Current.ID != "a" {
				t.Fatalf("Resolve(ref) = %s, want a", st.Current.ID)
			}
			for _, p := range probes {
				now := ref.Add(p)
				base, err := c.Resolve(now)
				if err != nil {
					t.Fatalf("Resolve: %v", err)
				}
				for _, k := range []int{-2, -1, 1, 3} {
					got, err := c.Resolve(tt.shift(now, k))
					if err != nil {
						t.Fatalf("Resolve: %v", err)
					}
					if got.Current.ID != base.Current.ID {
						t.Fatalf("probe %v lap %d: %s, want %s", p, k, got.Current.ID, base.Current.ID)
					}
					if got.Lap != base.Lap+int64(k) {
						t.Fatalf("probe %v lap %d: Lap = %d, want %d", p, k, got.Lap, base.Lap+int64(k))
					}
				}
			}
		})
	}
}

func TestNewCycleRejectsIllFormed(t *testing.T) {
	t.Parallel()
	ref := at(2020, 1, 1, 0, 0, 0)
	tests := []struct {
		name  string
		ref   time.Time
		items []Item
		g     Granularity
	}{
		{name: "no items", ref: ref, g: ByMonths()},
		{name: "zero weight", ref: ref, items: []Item{{ID: "a"}}, g: ByDuration(time.Minute)},
		{name: "negative weight", ref: ref, items: []Item{{ID: "a", Weight: -3}}, g: ByDays()},
		{name: "zero unit", ref: ref, items: items(1, "a"), g: ByDuration(0)},
		{name: "blank id", ref: ref, items: []Item{{ID: " ", Weight: 1}}, g: ByDays()},
		{name: "zero reference", items: items(1, "a"), g: ByDays()},
		{name: "unknown kind", ref: ref, items: items(1, "a"), g: Granularity{}},
	}
	for _, tt := range tests {
		if _, err := NewCycle(tt.ref, tt.items, tt.g); !errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("%s: err = %v, want ErrInvalidSchedule", tt.name, err)
		}
	}
}

func TestResolveOffsetRequiresOffsetCycle(t *testing.T) {
	t.Parallel()
	c, err := NewCycle(at(2020, 1, 1, 0, 0, 0), items(1, "a"), ByDays())
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	if _, err := c.ResolveOffset(at(2020, 1, 2, 0, 0, 0), 1); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("err = %v, want ErrInvalidSchedule", err)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{FixedDuration, ElapsedDays, ElapsedMonths, ElapsedDaysWithOffset} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", k, err)
		}
		if got != k {
			t.Fatalf("ParseKind(%q) = %v, want %v", k, got, k)
		}
	}
	if _, err := ParseKind("weekly"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
