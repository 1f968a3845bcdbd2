package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	logx "rotabot/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: normalize(cfg),
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func normalize(cfg Config) Config {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return cfg
}

func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Location
}

// Apply swaps the config. A timezone change restarts cron and re-registers
// every schedule.
func (s *Service) Apply(cfg Config) {
	cfg = normalize(cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	oldLoc := s.cfg.Location
	s.cfg = cfg
	if s.c != nil && oldLoc.String() != cfg.Location.String() {
		s.restartLocked()
	}
}

// Start begins triggering. Jobs run with a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.cfg.Location))
	for i := range s.defs {
		if err := s.addCronLocked(&s.defs[i]); err != nil {
			s.log.Error("schedule register failed", logx.String("name", s.defs[i].name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.cfg.Location.String()), logx.Int("schedules", len(s.defs)))
}

// Stop halts triggering and waits for running jobs until ctx ends.
// Definitions are kept for the next Start.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	for i := range s.defs {
		s.defs[i].entryID = 0
	}
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	done := make(chan struct{})
	go func() {
		s.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; canceling running jobs")
	}
	cancel()
	s.log.Info("scheduler stopped")
}

func (s *Service) restartLocked() {
	if s.c != nil {
		// Running jobs finish on their own; waiting here would block on s.mu.
		s.c.Stop()
	}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.cfg.Location))
	for i := range s.defs {
		s.defs[i].entryID = 0
		if err := s.addCronLocked(&s.defs[i]); err != nil {
			s.log.Error("schedule register failed", logx.String("name", s.defs[i].name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler restarted", logx.String("tz", s.cfg.Location.String()), logx.Int("schedules", len(s.defs)))
}
