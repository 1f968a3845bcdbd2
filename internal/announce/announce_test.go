package announce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"rotabot/internal/eventbus"
	"rotabot/internal/feature"
	"rotabot/internal/notifier"
	"rotabot/internal/storage"
	"rotabot/internal/task/scheduler"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

type fakeAnnouncer struct {
	name string
	text string
	ok   bool
	err  error
}

func (f fakeAnnouncer) Name() string       { return f.name }
func (f fakeAnnouncer) Kind() feature.Kind { return "fake" }
func (f fakeAnnouncer) Announce(time.Time) (string, bool, error) {
	return f.text, f.ok, f.err
}

type fakeOut struct {
	mu   sync.Mutex
	jobs []notifier.Job
	err  error
}

func (f *fakeOut) Submit(_ context.Context, j notifier.Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, j)
	return fmt.Sprintf("job-%d", len(f.jobs)), nil
}

func (f *fakeOut) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j.Post.Text)
	}
	return out
}

type fakeMirror struct{ got []string }

func (m *fakeMirror) Mirror(_ context.Context, text string) error {
	m.got = append(m.got, text)
	return nil
}

func TestRunPostsAndContinuesOnError(t *testing.T) {
	t.Parallel()

	out := &fakeOut{}
	mir := &fakeMirror{}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8, "announce.")
	defer unsub()

	svc := New(Options{
		Announcers: func() []feature.Announcer {
			return []feature.Announcer{
				fakeAnnouncer{name: "broken", err: errors.New("boom")},
				fakeAnnouncer{name: "quiet"},
				fakeAnnouncer{name: "rotation", text: "today: A", ok: true},
			}
		},
		Out:    out,
		Mirror: mir,
		Bus:    bus,
	})

	err := svc.Run(context.Background(), time.Now())
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("Run err = %v, want broken feature error", err)
	}
	if got := out.texts(); len(got) != 1 || got[0] != "today: A" {
		t.Fatalf("posted = %q", got)
	}
	if out.jobs[0].Post.Visibility != transport.Public || out.jobs[0].Source != "rotation" {
		t.Fatalf("job = %+v", out.jobs[0])
	}
	if len(mir.got) != 1 || mir.got[0] != "today: A" {
		t.Fatalf("mirrored = %q", mir.got)
	}

	var types []string
	for len(types) < 2 {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("events = %v", types)
		}
	}
	if types[0] != eventbus.AnnounceError || types[1] != eventbus.AnnounceRun {
		t.Fatalf("events = %v", types)
	}
}

func TestRunReportsSubmitFailure(t *testing.T) {
	t.Parallel()

	out := &fakeOut{err: notifier.ErrRateLimited}
	svc := New(Options{
		Announcers: func() []feature.Announcer {
			return []feature.Announcer{fakeAnnouncer{name: "a", text: "x", ok: true}}
		},
		Out: out,
	})
	if err := svc.Run(context.Background(), time.Now()); !errors.Is(err, notifier.ErrRateLimited) {
		t.Fatalf("Run err = %v, want ErrRateLimited", err)
	}
}

func TestPreviewDoesNotPost(t *testing.T) {
	t.Parallel()

	out := &fakeOut{}
	svc := New(Options{
		Announcers: func() []feature.Announcer {
			return []feature.Announcer{fakeAnnouncer{name: "a", text: "x", ok: true}, fakeAnnouncer{name: "b"}}
		},
		Out: out,
	})
	res := svc.Preview(time.Now())
	if len(res) != 2 || !res[0].OK || res[1].OK {
		t.Fatalf("Preview = %+v", res)
	}
	if len(out.texts()) != 0 {
		t.Fatalf("Preview posted %q", out.texts())
	}
}

func TestScheduleReplacesDailyJobs(t *testing.T) {
	t.Parallel()

	sched := scheduler.New(scheduler.Config{}, logx.Nop())
	svc := New(Options{Out: &fakeOut{}})
	if err := svc.Schedule(sched, []Clock{{6, 1, 30}, {18, 1, 30}}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := svc.Schedule(sched, []Clock{{12, 0, 0}}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	snap := sched.Snapshot()
	if len(snap) != 1 || snap[0].Spec != "0 0 12 * * *" {
		t.Fatalf("Snapshot = %+v", snap)
	}
	if err := svc.Schedule(sched, []Clock{{25, 0, 0}}); err == nil {
		t.Fatalf("Schedule accepted hour 25")
	}
}

type fakeActivity struct {
	weeks []transport.WeeklyActivity
	err   error
}

func (f fakeActivity) WeeklyActivity(context.Context) ([]transport.WeeklyActivity, error) {
	return f.weeks, f.err
}

func TestWeeklyPostsOncePerWeek(t *testing.T) {
	t.Parallel()

	jst := time.FixedZone("JST", 9*3600)
	prev := time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC)
	src := fakeActivity{weeks: []transport.WeeklyActivity{
		{Week: prev.AddDate(0, 0, -7), Statuses: 1},
		{Week: prev, Statuses: 120, Logins: 34, Registrations: 5},
		{Week: prev.AddDate(0, 0, 7), Statuses: 3},
	}}
	out := &fakeOut{}
	store := storage.NewMemory()
	w := NewWeekly(WeeklyOptions{
		Source:   src,
		Store:    store,
		Out:      out,
		Template: "__START_DATE__-__END_DATE__ s=__STATUSES__ l=__LOGINS__ r=__REGISTRATIONS__",
		Location: jst,
	})

	text, err := w.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	want := "2024-04-29-2024-05-05 s=120 l=34 r=5"
	if text != want {
		t.Fatalf("Check = %q, want %q", text, want)
	}
	if got, _ := store.GetState(context.Background(), weeklyStateKey); got != fmt.Sprint(prev.Unix()) {
		t.Fatalf("stored week = %q", got)
	}

	text, err = w.Check(context.Background())
	if err != nil || text != "" {
		t.Fatalf("second Check = %q, %v; want nothing", text, err)
	}
	if len(out.texts()) != 1 {
		t.Fatalf("posted %d times, want 1", len(out.texts()))
	}
}

func TestWeeklyEdgeCases(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		src     fakeActivity
		wantErr bool
	}{
		{name: "single week", src: fakeActivity{weeks: []transport.WeeklyActivity{{Week: now}}}},
		{name: "empty", src: fakeActivity{}},
		{name: "fetch error", src: fakeActivity{err: errors.New("down")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := &fakeOut{}
			w := NewWeekly(WeeklyOptions{Source: tt.src, Out: out})
			text, err := w.Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check err = %v, wantErr %v", err, tt.wantErr)
			}
			if text != "" || len(out.texts()) != 0 {
				t.Fatalf("Check posted %q", text)
			}
		})
	}
}

func atomFeed(entries ...[3]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><feed xmlns="http://www.w3.org/2005/Atom"><title>news</title>`)
	for _, e := range entries {
		fmt.Fprintf(&b, `<entry><id>%s</id><title>%s</title><link href="https://example.com/%s"/>`, e[0], e[1], e[0])
		if e[2] != "" {
			fmt.Fprintf(&b, `<author><name>%s</name></author>`, e[2])
		}
		b.WriteString(`<updated>2024-05-01T00:00:00Z</updated></entry>`)
	}
	b.WriteString(`</feed>`)
	return b.String()
}

func TestFeedsPostsNewMatchingEntries(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		body string
		ua   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	mu.Lock()
	body = atomFeed(
		[3]string{"2", "Maintenance notice", ""},
		[3]string{"1", "Event starts", "Alice"},
	)
	mu.Unlock()

	out := &fakeOut{}
	f, err := NewFeeds(FeedsOptions{
		Sources:       []FeedSource{{Name: "news", URL: srv.URL}},
		TitlePatterns: []string{"Maintenance", "Event"},
		UserAgent:     "rotabot-test",
		Out:           out,
	})
	if err != nil {
		t.Fatalf("NewFeeds: %v", err)
	}

	if err := f.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"Event starts [Alice]\n\nhttps://example.com/1",
		"Maintenance notice\n\nhttps://example.com/2",
	}
	if got := out.texts(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("posted = %q, want %q", got, want)
	}
	mu.Lock()
	gotUA := ua
	mu.Unlock()
	if gotUA != "rotabot-test" {
		t.Fatalf("User-Agent = %q", gotUA)
	}

	// Nothing new.
	if err := f.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(out.texts()); n != 2 {
		t.Fatalf("posted %d, want 2", n)
	}

	mu.Lock()
	body = atomFeed(
		[3]string{"4", "Unrelated", ""},
		[3]string{"3", "Event ends", ""},
		[3]string{"2", "Maintenance notice", ""},
	)
	mu.Unlock()
	if err := f.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.texts()
	if len(got) != 3 || got[2] != "Event ends\n\nhttps://example.com/3" {
		t.Fatalf("posted = %q", got)
	}
}

func TestFeedsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := NewFeeds(FeedsOptions{TitlePatterns: []string{"("}}); err == nil {
		t.Fatalf("NewFeeds accepted a bad pattern")
	}
	if _, err := NewFeeds(FeedsOptions{Sources: []FeedSource{{Name: "x"}}}); err == nil {
		t.Fatalf("NewFeeds accepted a source without url")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()
	out := &fakeOut{}
	f, err := NewFeeds(FeedsOptions{Sources: []FeedSource{{Name: "down", URL: srv.URL}}, Out: out})
	if err != nil {
		t.Fatalf("NewFeeds: %v", err)
	}
	if err := f.Run(context.Background(), time.Now()); err == nil {
		t.Fatalf("Run err = nil, want fetch error")
	}
}

func TestNewItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		last string
		want int
	}{
		{name: "first run", last: "", want: 3},
		{name: "newest seen", last: "c", want: 0},
		{name: "one new", last: "b", want: 1},
		{name: "unknown id", last: "zz", want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items := feedItems("c", "b", "a")
			if got := len(newItems(items, tt.last)); got != tt.want {
				t.Fatalf("newItems(%q) = %d items, want %d", tt.last, got, tt.want)
			}
		})
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepCtx = %v, want context.Canceled", err)
	}
}

func feedItems(ids ...string) []*gofeed.Item {
	out := make([]*gofeed.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, &gofeed.Item{GUID: id, Title: id, Link: "https://example.com/" + id})
	}
	return out
}
