package emoji

import (
	"strings"
	"sync"
	"testing"
)

func TestFillUsesEachCodeOncePerRound(t *testing.T) {
	t.Parallel()

	p := NewPool("", []string{"a", ":b:", "c", " "})
	got := p.Fill("__EMOJI__ __EMOJI__ __EMOJI__")
	seen := map[string]int{}
	for _, f := range strings.Fields(got) {
		seen[f]++
	}
	if len(seen) != 3 || seen[":a:"] != 1 || seen[":b:"] != 1 || seen[":c:"] != 1 {
		t.Fatalf("Fill = %q, want each of :a: :b: :c: once", got)
	}

	// the fourth draw starts a new round
	if next := p.Next(); next != ":a:" && next != ":b:" && next != ":c:" {
		t.Fatalf("Next = %q, want a known code", next)
	}
}

func TestFillEmptyPool(t *testing.T) {
	t.Parallel()

	var nilPool *Pool
	cases := []struct {
		name string
		p    *Pool
	}{
		{name: "nil", p: nilPool},
		{name: "no codes", p: NewPool("", nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.p.Fill("x__EMOJI__y"); got != "xy" {
				t.Fatalf("Fill = %q, want xy", got)
			}
			if got := tc.p.Next(); got != "" {
				t.Fatalf("Next = %q, want empty", got)
			}
		})
	}
}

func TestCustomPlaceholder(t *testing.T) {
	t.Parallel()

	p := NewPool("{e}", []string{"z"})
	if got := p.Fill("{e}{e}__EMOJI__"); got != ":z::z:__EMOJI__" {
		t.Fatalf("Fill = %q", got)
	}
}

func TestConcurrentFill(t *testing.T) {
	t.Parallel()

	p := NewPool("", []string{"a", "b", "c", "d"})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if out := p.Fill("__EMOJI__"); strings.Contains(out, "__EMOJI__") {
					t.Errorf("Fill left placeholder: %q", out)
					return
				}
			}
		}()
	}
	wg.Wait()
}
