package rotation

import (
	"errors"
	"testing"
	"time"
)

var jst = time.FixedZone("JST", 9*60*60)

func at(y int, m time.Month, d, h, mi, s int) time.Time {
	return time.Date(y, m, d, h, mi, s, 0, jst)
}

func TestFlooredMod(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, n, mod, div int64
	}{
		{a: 0, n: 5, mod: 0, div: 0},
		{a: 7, n: 5, mod: 2, div: 1},
		{a: -1, n: 5, mod: 4, div: -1},
		{a: -5, n: 5, mod: 0, div: -1},
		{a: -10, n: 10, mod: 0, div: -1},
		{a: -11, n: 10, mod: 9, div: -2},
		{a: 10, n: 10, mod: 0, div: 1},
	}
	for _, tt := range tests {
		if got := FlooredMod(tt.a, tt.n); got != tt.mod {
			t.Fatalf("FlooredMod(%d, %d) = %d, want %d", tt.a, tt.n, got, tt.mod)
		}
		if got := FloorDiv(tt.a, tt.n); got != tt.div {
			t.Fatalf("FloorDiv(%d, %d) = %d, want %d", tt.a, tt.n, got, tt.div)
		}
	}
}

func TestElapsedMinutes(t *testing.T) {
	t.Parallel()
	ref := at(2020, 6, 5, 15, 0, 0)
	tests := []struct {
		name string
		now  time.Time
		want int64
	}{
		{name: "reference", now: ref, want: 0},
		{name: "one second after", now: ref.Add(time.Second), want: 0},
		{name: "one minute after", now: ref.Add(time.Minute), want: 1},
		{name: "one nanosecond before", now: ref.Add(-time.Nanosecond), want: -1},
		{name: "exactly one minute before", now: ref.Add(-time.Minute), want: -1},
		{name: "just over one minute before", now: ref.Add(-time.Minute - time.Nanosecond), want: -2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ElapsedMinutes(ref, tt.now)
			if err != nil {
				t.Fatalf("ElapsedMinutes error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ElapsedMinutes = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestElapsedUnitsOutOfRange(t *testing.T) {
	t.Parallel()
	ref := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2900, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := ElapsedMinutes(ref, now); !errors.Is(err, ErrTemporalRange) {
		t.Fatalf("err = %v, want ErrTemporalRange", err)
	}
	if _, err := ElapsedMinutes(now, ref); !errors.Is(err, ErrTemporalRange) {
		t.Fatalf("err = %v, want ErrTemporalRange", err)
	}
}

func TestElapsedWholeDays(t *testing.T) {
	t.Parallel()
	ref := at(2018, 4, 20, 6, 0, 0)
	tests := []struct {
		now  time.Time
		want int64
	}{
		{now: at(2018, 4, 20, 6, 0, 0), want: 0},
		{now: at(2018, 4, 21, 5, 59, 59), want: 0},
		{now: at(2018, 4, 21, 6, 0, 0), want: 1},
		{now: at(2018, 4, 20, 5, 59, 59), want: -1},
		{now: at(2018, 4, 19, 6, 0, 0), want: -1},
		{now: at(2018, 4, 19, 5, 59, 59), want: -2},
		{now: at(2018, 5, 20, 6, 0, 0), want: 30},
		// Same instant expressed in UTC lands on the previous civil date.
		{now: time.Date(2018, 4, 20, 21, 0, 0, 0, time.UTC), want: 1},
	}
	for _, tt := range tests {
		if got := ElapsedWholeDays(ref, tt.now); got != tt.want {
			t.Fatalf("ElapsedWholeDays(%v) = %d, want %d", tt.now, got, tt.want)
		}
	}
}

func TestElapsedWholeMonths(t *testing.T) {
	t.Parallel()
	ref := at(2020, 7, 10, 6, 0, 0)
	tests := []struct {
		now  time.Time
		want int64
	}{
		{now: at(2020, 7, 10, 6, 0, 0), want: 0},
		{now: at(2020, 8, 10, 5, 59, 59), want: 0},
		{now: at(2020, 8, 10, 6, 0, 0), want: 1},
		{now: at(2020, 8, 9, 23, 0, 0), want: 0},
		{now: at(2021, 7, 10, 6, 0, 0), want: 12},
		{now: at(2020, 7, 10, 5, 59, 59), want: -1},
		{now: at(2020, 6, 10, 6, 0, 0), want: -1},
		{now: at(2020, 6, 10, 5, 59, 59), want: -2},
		{now: at(2019, 7, 10, 6, 0, 0), want: -12},
	}
	for _, tt := range tests {
		if got := ElapsedWholeMonths(ref, tt.now); got != tt.want {
			t.Fatalf("ElapsedWholeMonths(%v) = %d, want %d", tt.now, got, tt.want)
		}
	}
}

func TestLocalTimeRejectsGapAndOverlap(t *testing.T) {
	t.Parallel()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	if _, err := localTime(2021, time.March, 14, clock{h: 2, m: 30}, ny); !errors.Is(err, ErrAmbiguousLocalTime) {
		t.Fatalf("gap: err = %v, want ErrAmbiguousLocalTime", err)
	}
	if _, err := localTime(2021, time.November, 7, clock{h: 1, m: 30}, ny); !errors.Is(err, ErrAmbiguousLocalTime) {
		t.Fatalf("overlap: err = %v, want ErrAmbiguousLocalTime", err)
	}
	got, err := localTime(2021, time.November, 7, clock{h: 6}, ny)
	if err != nil {
		t.Fatalf("unambiguous: %v", err)
	}
	if got.Hour() != 6 {
		t.Fatalf("hour = %d, want 6", got.Hour())
	}
}
