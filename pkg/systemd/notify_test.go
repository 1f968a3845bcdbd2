package systemd

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logx "rotabot/pkg/logx"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(_ bool, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

func newTestNotifier(rec *recorder, every time.Duration, err error) *Notifier {
	n := New(logx.Nop())
	n.notify = rec.notify
	n.interval = func(bool) (time.Duration, error) { return every, err }
	return n
}

func TestLifecycleStates(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	n := newTestNotifier(rec, 0, nil)
	n.Ready()
	n.Status("2 features")
	n.Stopping()

	want := []string{"READY=1", "STATUS=2 features", "STOPPING=1"}
	if len(rec.states) != len(want) {
		t.Fatalf("states = %q, want %q", rec.states, want)
	}
	for i := range want {
		if rec.states[i] != want[i] {
			t.Fatalf("states[%d] = %q, want %q", i, rec.states[i], want[i])
		}
	}
}

func TestWatchdogDisabled(t *testing.T) {
	t.Parallel()

	n := newTestNotifier(&recorder{}, 0, nil)
	if err := n.Watchdog(context.Background(), nil); err != nil {
		t.Fatalf("Watchdog = %v, want nil", err)
	}
	n = newTestNotifier(&recorder{}, 0, errors.New("bad WATCHDOG_USEC"))
	if err := n.Watchdog(context.Background(), nil); err == nil {
		t.Fatalf("Watchdog err = nil, want error")
	}
}

func TestWatchdogPingsWhileHealthy(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	n := newTestNotifier(rec, 20*time.Millisecond, nil)
	var healthy atomic.Bool
	healthy.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Watchdog(ctx, healthy.Load) }()

	deadline := time.Now().Add(2 * time.Second)
	for rec.count("WATCHDOG=1") < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("watchdog pings = %d, want >= 2", rec.count("WATCHDOG=1"))
		}
		time.Sleep(5 * time.Millisecond)
	}
	healthy.Store(false)
	time.Sleep(30 * time.Millisecond)
	before := rec.count("WATCHDOG=1")
	time.Sleep(60 * time.Millisecond)
	if after := rec.count("WATCHDOG=1"); after != before {
		t.Fatalf("pings while unhealthy: %d -> %d", before, after)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watchdog = %v, want nil", err)
	}
}
