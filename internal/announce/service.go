// Package announce posts scheduled content: feature announcements at the
// configured times, the weekly instance activity and new feed entries.
package announce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rotabot/internal/eventbus"
	"rotabot/internal/feature"
	"rotabot/internal/notifier"
	"rotabot/internal/task/scheduler"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

// Submitter queues outbound jobs; *notifier.Service implements it.
type Submitter interface {
	Submit(ctx context.Context, j notifier.Job) (string, error)
}

// AnnouncerSource returns the announcers active right now. It is called on
// every tick so reloaded features take effect without rescheduling.
type AnnouncerSource func() []feature.Announcer

const schedulePrefix = "announce."

type Options struct {
	Announcers AnnouncerSource
	Out        Submitter
	Mirror     transport.Mirror // optional
	Bus        eventbus.Bus     // optional
	Log        logx.Logger
	Visibility transport.Visibility
}

type Service struct {
	opts Options
	log  logx.Logger
}

// Result is one announcer outcome at an instant.
type Result struct {
	Feature string
	Text    string
	OK      bool
	Err     error
}

func New(opts Options) *Service {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Visibility == "" {
		opts.Visibility = transport.Public
	}
	return &Service{opts: opts, log: log.With(logx.String("comp", "announce"))}
}

// Preview runs every announcer at now without posting anything.
func (s *Service) Preview(now time.Time) []Result {
	var src []feature.Announcer
	if s.opts.Announcers != nil {
		src = s.opts.Announcers()
	}
	out := make([]Result, 0, len(src))
	for _, a := range src {
		text, ok, err := a.Announce(now)
		out = append(out, Result{Feature: a.Name(), Text: text, OK: ok && err == nil && text != "", Err: err})
	}
	return out
}

// Run posts every non-empty announcement for now. A failing feature is
// logged and skipped; the joined errors are returned.
func (s *Service) Run(ctx context.Context, now time.Time) error {
	var errs []error
	for _, r := range s.Preview(now) {
		if r.Err != nil {
			s.log.Error("announcement failed", logx.String("feature", r.Feature), logx.Time("at", now), logx.Err(r.Err))
			eventbus.Emit(s.opts.Bus, eventbus.AnnounceError, eventbus.AnnounceEvent{Feature: r.Feature, Error: r.Err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", r.Feature, r.Err))
			continue
		}
		if !r.OK {
			continue
		}
		eventbus.Emit(s.opts.Bus, eventbus.AnnounceRun, eventbus.AnnounceEvent{Feature: r.Feature})
		if err := s.post(ctx, r.Feature, r.Text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) post(ctx context.Context, source, text string) error {
	id, err := s.opts.Out.Submit(ctx, notifier.Status(source, transport.Post{Text: text, Visibility: s.opts.Visibility}))
	if err != nil {
		s.log.Warn("announcement not queued", logx.String("feature", source), logx.Err(err))
		return fmt.Errorf("%s: %w", source, err)
	}
	s.log.Info("announcement queued", logx.String("feature", source), logx.String("job", id))
	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.Mirror(ctx, text); err != nil {
			s.log.Warn("mirror failed", logx.String("feature", source), logx.Err(err))
		}
	}
	return nil
}

// Clock is a wall-clock time of day.
type Clock struct{ Hour, Minute, Second int }

// Schedule replaces the daily announcement jobs with one per clock.
func (s *Service) Schedule(sched *scheduler.Service, clocks []Clock) error {
	sched.RemovePrefix(schedulePrefix)
	var errs []error
	for i, c := range clocks {
		name := fmt.Sprintf("%s%d", schedulePrefix, i)
		if err := sched.AddDaily(name, c.Hour, c.Minute, c.Second, s.Run); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
