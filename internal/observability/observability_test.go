package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"rotabot/internal/eventbus"
	"rotabot/internal/notifier"
	logx "rotabot/pkg/logx"
)

func TestObserveCounters(t *testing.T) {
	t.Parallel()
	m := NewMetrics(nil)
	m.Observe(eventbus.Event{Type: eventbus.PostSent, Data: notifier.PostEvent{Kind: notifier.KindStatus}})
	m.Observe(eventbus.Event{Type: eventbus.PostSent, Data: notifier.PostEvent{Kind: notifier.KindStatus}})
	m.Observe(eventbus.Event{Type: eventbus.PostDropped, Data: notifier.PostEvent{Kind: notifier.KindFollow}})
	m.Observe(eventbus.Event{Type: eventbus.AnnounceError, Data: eventbus.AnnounceEvent{Feature: "boueigun", Error: "x"}})
	m.Observe(eventbus.Event{Type: eventbus.ReplySent})

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"sent", testutil.ToFloat64(m.Posts.WithLabelValues("status", "sent")), 2},
		{"dropped", testutil.ToFloat64(m.Posts.WithLabelValues("follow", "dropped")), 1},
		{"announce error", testutil.ToFloat64(m.Announcements.WithLabelValues("boueigun", "error")), 1},
		{"replies", testutil.ToFloat64(m.Replies), 1},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestConsumeFromBus(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	m := NewMetrics(bus.Missed)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Consume(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.Replies) == 0 && time.Now().Before(deadline) {
		eventbus.Emit(bus, eventbus.ReplySent, nil)
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	if testutil.ToFloat64(m.Replies) == 0 {
		t.Fatalf("replies counter never moved")
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := NewMetrics(nil)
	m.Replies.Inc()
	s := NewServer(Config{}, m, func() (bool, any) { return false, []string{"stream.user restarting"} }, logx.Nop())

	cases := []struct {
		name   string
		cfg    Config
		path   string
		header string
		status int
		body   string
	}{
		{name: "metrics", path: "/metrics", status: http.StatusOK, body: "rotabot_replies_total 1"},
		{name: "health", path: "/healthz", status: http.StatusServiceUnavailable, body: "stream.user restarting"},
		{name: "pprof off", path: "/debug/pprof/", status: http.StatusNotFound},
		{name: "pprof on", cfg: Config{Pprof: true}, path: "/debug/pprof/", status: http.StatusOK},
		{name: "no token", cfg: Config{Token: "s3"}, path: "/metrics", status: http.StatusUnauthorized},
		{name: "bad query token", cfg: Config{Token: "s3"}, path: "/metrics?token=nope", status: http.StatusUnauthorized},
		{name: "query token", cfg: Config{Token: "s3"}, path: "/metrics?token=s3", status: http.StatusOK},
		{name: "bearer", cfg: Config{Token: "s3"}, path: "/metrics", header: "Bearer s3", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			s.Handler(tc.cfg).ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if tc.body != "" && !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("body = %q, want it to contain %q", rec.Body.String(), tc.body)
			}
		})
	}
}

func TestHealthzDefault(t *testing.T) {
	t.Parallel()
	s := NewServer(Config{}, nil, nil, logx.Nop())
	rec := httptest.NewRecorder()
	s.Handler(Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var got struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || !got.Healthy {
		t.Fatalf("healthz = %q (%v)", rec.Body.String(), err)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"127.0.0.1:9464": true,
		"localhost:1":    true,
		"[::1]:80":       true,
		":9464":          false,
		"0.0.0.0:9464":   false,
		"10.0.0.2:9464":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestStartRefusesInsecureBind(t *testing.T) {
	t.Parallel()
	s := NewServer(Config{Enabled: true, Addr: "0.0.0.0:0"}, nil, nil, logx.Nop())
	if err := s.serveOnce(context.Background()); err == nil {
		t.Fatalf("serveOnce on 0.0.0.0 without token succeeded")
	}
}
