package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "rotabot/pkg/logx"
)

// AddSchedule parses schedule (see ParseSchedule) and registers either a cron
// or an interval job.
func (s *Service) AddSchedule(name, schedule string, job Job) error {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	switch ps.Kind {
	case SpecCron:
		return s.AddCron(name, ps.Cron, job)
	case SpecInterval:
		return s.AddInterval(name, ps.Every, job)
	default:
		return errors.New("unsupported schedule kind")
	}
}

// AddDaily fires every day at the given wall-clock time.
func (s *Service) AddDaily(name string, hour, minute, second int, job Job) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return fmt.Errorf("invalid daily time %02d:%02d:%02d", hour, minute, second)
	}
	return s.AddCron(name, fmt.Sprintf("%d %d %d * * *", second, minute, hour), job)
}

func (s *Service) AddInterval(name string, every time.Duration, job Job) error {
	if every <= 0 {
		return errors.New("interval must be > 0")
	}
	return s.add(name, "@every "+every.String(), job)
}

// AddCron registers spec under name, replacing any schedule with that name.
func (s *Service) AddCron(name, spec string, job Job) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return s.add(name, spec, job)
}

func (s *Service) add(name, spec string, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Upsert by name so reloads never duplicate schedules.
	s.removeLocked(name)
	s.defs = append(s.defs, scheduleDef{name: name, spec: spec, job: job, state: &runState{}})
	if s.c == nil {
		return nil
	}
	d := &s.defs[len(s.defs)-1]
	if err := s.addCronLocked(d); err != nil {
		return err
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec), logx.Time("next", s.c.Entry(d.entryID).Next))
	return nil
}

// Remove unschedules name and reports whether it existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(strings.TrimSpace(name))
}

// RemovePrefix unschedules every schedule whose name starts with prefix.
func (s *Service) RemovePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, d := range s.defs {
		if strings.HasPrefix(d.name, prefix) {
			names = append(names, d.name)
		}
	}
	for _, n := range names {
		s.removeLocked(n)
	}
	return len(names)
}

func (s *Service) removeLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	name, job, state := d.name, d.job, d.state
	fn := cron.FuncJob(func() { s.run(name, job, state) })

	spec := strings.TrimSpace(d.spec)
	if strings.HasPrefix(spec, "@every") {
		// Interval jobs get a random first delay so they do not all fire
		// together right after start.
		if every, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every"))); err == nil && every > 0 {
			sched, _ := intervalWithSpread(every, time.Now().In(s.cfg.Location))
			d.entryID = s.c.Schedule(sched, fn)
			return nil
		}
	}
	eid, err := s.c.AddJob(spec, fn)
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

func (s *Service) run(name string, job Job, st *runState) {
	if !st.running.CompareAndSwap(false, true) {
		st.skipped.Add(1)
		s.log.Warn("job still running; trigger skipped", logx.String("name", name))
		return
	}
	s.mu.Lock()
	parent := s.ctx
	loc := s.cfg.Location
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	if parent == nil {
		st.running.Store(false)
		return
	}
	now := time.Now().In(loc).Truncate(time.Second)

	s.runWG.Add(1)
	go func() {
		defer s.runWG.Done()
		defer st.running.Store(false)
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		start := time.Now()

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("job panic", logx.String("name", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return job(ctx, now)
		}()

		st.runs.Add(1)
		st.mu.Lock()
		st.lastAt = now
		st.lastErr = ""
		if err != nil {
			st.lastErr = err.Error()
		}
		st.mu.Unlock()
		if err != nil {
			s.log.Warn("job failed", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
			return
		}
		s.log.Debug("job done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}()
}

// Snapshot lists schedules sorted by name. Next and Prev are zero while the
// scheduler is stopped.
func (s *Service) Snapshot() []ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduleInfo, 0, len(s.defs))
	for _, d := range s.defs {
		info := ScheduleInfo{Name: d.name, Spec: d.spec, Runs: d.state.runs.Load(), Skipped: d.state.skipped.Load()}
		d.state.mu.Lock()
		info.LastErr, info.LastAt = d.state.lastErr, d.state.lastAt
		d.state.mu.Unlock()
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			info.Next, info.Prev = e.Next, e.Prev
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
