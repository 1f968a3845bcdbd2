package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"rotabot/internal/eventbus"
	rtsup "rotabot/internal/runtime/supervisor"
	"rotabot/internal/storage"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

var (
	ErrQueueFull   = errors.New("notifier queue full")
	ErrStopped     = errors.New("notifier stopped")
	ErrRateLimited = errors.New("notifier rate limited")
	ErrEmpty       = errors.New("notifier: empty job")
)

// Sink delivers jobs. transport.Social satisfies it.
type Sink interface {
	transport.Poster
	transport.Follower
}

type job struct {
	Job
	id  string
	key string
}

// Service implements queue + worker pool + rate limit + retry + dedup.
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	sink  Sink
	bus   eventbus.Bus
	store storage.Store

	cfg      Config
	statuses *rate.Limiter
	follows  *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	dmu   sync.Mutex
	dedup map[string]time.Time

	persistCh chan dedupWrite
}

type dedupWrite struct {
	key   string
	until time.Time
}

func New(cfg Config, sink Sink, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sink:  sink,
		log:   log,
		bus:   bus,
		store: store,
		dedup: map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

// Supervisor returns the internal supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

// Apply swaps limits, retry and dedup settings. Workers and queue size take
// effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.StatusesPerMinute <= 0 {
		cfg.StatusesPerMinute = 20
	}
	if cfg.FollowsPerMinute <= 0 {
		cfg.FollowsPerMinute = 10
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}

	old := s.cfg
	s.cfg = cfg
	// Keep the buckets across reloads unless the limit changed.
	if s.statuses == nil || old.StatusesPerMinute != cfg.StatusesPerMinute {
		s.statuses = perMinute(cfg.StatusesPerMinute)
	}
	if s.follows == nil || old.FollowsPerMinute != cfg.FollowsPerMinute {
		s.follows = perMinute(cfg.FollowsPerMinute)
	}
}

// perMinute allows n actions per rolling minute with a burst of n.
func perMinute(n int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	if s.cfg.PersistDedup && s.store != nil {
		s.persistCh = make(chan dedupWrite, 1024)
	}
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "notifier"))),
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	pch := s.persistCh
	st := s.store
	s.mu.Unlock()

	if pch != nil {
		sup.GoRestart("dedup.persist", func(c context.Context) error {
			s.persistLoop(c, pch, st)
			return s.loopExit(c, "persist loop")
		}, rtsup.WithPublishFirstError(true))
	}
	for i := 0; i < workers; i++ {
		sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, q)
			return s.loopExit(c, "worker")
		}, rtsup.WithPublishFirstError(true))
	}
}

// loopExit maps a returned loop to a restart decision: clean exits happen
// only on shutdown.
func (s *Service) loopExit(c context.Context, what string) error {
	s.mu.Lock()
	stopping := s.stopDone != nil
	s.mu.Unlock()
	if stopping {
		return nil
	}
	if c.Err() != nil {
		return c.Err()
	}
	return fmt.Errorf("notifier %s exited unexpectedly", what)
}

// Stop stops intake and drains the queue until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	pch := s.persistCh
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		// Only Submit writes to q and pch.
		s.sendWG.Wait()
		close(q)
		if pch != nil {
			close(pch)
		}
		if sup != nil {
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.queue = nil
		s.persistCh = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if sup != nil {
			sup.Cancel()
		}
	}
}

// Submit queues j and returns its job ID. A job suppressed by dedup returns
// its ID and a nil error; it is never delivered.
func (s *Service) Submit(ctx context.Context, j Job) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validate(j); err != nil {
		return "", err
	}

	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return "", ErrStopped
	}
	q := s.queue
	cfg := s.cfg
	lim := s.statuses
	if j.Kind != KindStatus {
		lim = s.follows
	}
	st := s.store
	pch := s.persistCh
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	jb := job{Job: j, id: uuid.NewString(), key: dedupKey(j)}
	ev := PostEvent{ID: jb.id, Kind: j.Kind, Source: j.Source, Target: j.target(), Key: jb.key, At: time.Now()}

	if cfg.DedupWindow > 0 && !s.dedupAllow(ctx, jb.key, cfg.DedupWindow, cfg.DedupMaxEntries, cfg.PersistDedup, st, pch) {
		s.log.Debug("job deduped", logx.String("job", jb.id), logx.String("source", j.Source))
		eventbus.Emit(s.bus, eventbus.PostDeduped, ev)
		return jb.id, nil
	}

	if !lim.Allow() {
		s.forget(jb.key)
		s.log.Warn("job dropped: rate limited", logx.String("job", jb.id), logx.String("kind", string(j.Kind)), logx.String("source", j.Source))
		ev.Error = ErrRateLimited.Error()
		eventbus.Emit(s.bus, eventbus.PostDropped, ev)
		return jb.id, ErrRateLimited
	}

	select {
	case q <- jb:
		eventbus.Emit(s.bus, eventbus.PostQueued, ev)
		return jb.id, nil
	default:
		s.forget(jb.key)
		s.log.Warn("job dropped: queue full", logx.String("job", jb.id), logx.Int("cap", cap(q)))
		ev.Error = ErrQueueFull.Error()
		eventbus.Emit(s.bus, eventbus.PostDropped, ev)
		return jb.id, ErrQueueFull
	}
}

// forget releases the dedup window of a job that was never queued.
func (s *Service) forget(key string) {
	s.dmu.Lock()
	delete(s.dedup, key)
	s.dmu.Unlock()
}

func validate(j Job) error {
	switch j.Kind {
	case KindStatus:
		if strings.TrimSpace(j.Post.Text) == "" {
			return ErrEmpty
		}
	case KindFollow, KindUnfollow:
		if strings.TrimSpace(j.AccountID) == "" {
			return ErrEmpty
		}
	default:
		return fmt.Errorf("notifier: unknown job kind %q", j.Kind)
	}
	return nil
}

func (s *Service) persistLoop(ctx context.Context, ch <-chan dedupWrite, st storage.Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-ch:
			if !ok {
				return
			}
			cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
			if err := st.PutDedup(cctx, w.key, w.until); err != nil {
				s.log.Debug("dedup persist failed", logx.Err(err))
			}
			cancel()
		}
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, j)
		}
	}
}

func (s *Service) deliver(runCtx context.Context, j job) {
	s.mu.Lock()
	cfg := s.cfg
	sink := s.sink
	log := s.log
	bus := s.bus
	st := s.store
	s.mu.Unlock()

	if sink == nil {
		return
	}
	start := time.Now()
	maxAttempts := 1 + cfg.RetryMax

	var (
		remoteID string
		lastErr  error
		attempt  int
	)
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(runCtx, 30*time.Second)
		remoteID, lastErr = send(callCtx, sink, j.Job)
		cancel()
		if lastErr == nil {
			break
		}
		log.Debug("send failed", logx.String("job", j.id), logx.Err(lastErr), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))
		if attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-runCtx.Done():
			t.Stop()
			lastErr = runCtx.Err()
		}
		if runCtx.Err() != nil {
			break
		}
	}
	attempt = min(attempt, maxAttempts)

	ev := PostEvent{ID: j.id, Kind: j.Kind, Source: j.Source, Target: j.target(), Key: j.key, RemoteID: remoteID, Attempts: attempt, At: time.Now()}
	entry := storage.AuditEntry{
		JobID:      j.id,
		Action:     string(j.Kind),
		Source:     j.Source,
		Target:     j.target(),
		Visibility: string(j.Post.Visibility),
		Text:       j.Post.Text,
		RemoteID:   remoteID,
		Attempts:   attempt,
		OK:         lastErr == nil,
		TookMS:     time.Since(start).Milliseconds(),
	}
	if lastErr != nil {
		ev.Error = lastErr.Error()
		entry.Error = lastErr.Error()
		log.Warn("send gave up", logx.String("job", j.id), logx.String("kind", string(j.Kind)), logx.Int("attempts", attempt), logx.Err(lastErr))
		eventbus.Emit(bus, eventbus.PostFailed, ev)
	} else {
		log.Debug("sent", logx.String("job", j.id), logx.String("kind", string(j.Kind)), logx.String("remote_id", remoteID))
		eventbus.Emit(bus, eventbus.PostSent, ev)
	}
	if st != nil {
		// The audit must not depend on the worker context, which is already
		// canceled during a forced stop.
		actx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := st.AppendAudit(actx, entry); err != nil {
			log.Debug("audit append failed", logx.Err(err))
		}
		cancel()
	}
}

func send(ctx context.Context, sink Sink, j Job) (string, error) {
	switch j.Kind {
	case KindStatus:
		return sink.PostStatus(ctx, j.Post)
	case KindFollow:
		return "", sink.Follow(ctx, j.AccountID)
	case KindUnfollow:
		return "", sink.Unfollow(ctx, j.AccountID)
	default:
		return "", fmt.Errorf("notifier: unknown job kind %q", j.Kind)
	}
}

func dedupKey(j Job) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(j.Kind))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(j.target()))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(j.Post.Text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupAllow(ctx context.Context, key string, window time.Duration, maxEntries int, persist bool, st storage.Store, pch chan dedupWrite) bool {
	now := time.Now()

	s.dmu.Lock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		s.dmu.Unlock()
		return false
	}
	s.dmu.Unlock()

	// Persistent check for cross-restart dedup.
	if persist && st != nil {
		cctx, cancel := context.WithTimeout(ctx, 25*time.Millisecond)
		until, ok, err := st.GetDedup(cctx, key)
		cancel()
		if err == nil && ok && now.Before(until) {
			s.dmu.Lock()
			s.dedup[key] = until
			s.dmu.Unlock()
			return false
		}
	}

	until := now.Add(window)
	s.dmu.Lock()
	s.dedup[key] = until
	for k, u := range s.dedup {
		if !now.Before(u) {
			delete(s.dedup, k)
		}
	}
	for len(s.dedup) > maxEntries {
		var (
			minKey string
			minT   time.Time
		)
		for k, t := range s.dedup {
			if minKey == "" || t.Before(minT) {
				minKey, minT = k, t
			}
		}
		delete(s.dedup, minKey)
	}
	s.dmu.Unlock()

	if pch != nil {
		select {
		case pch <- dedupWrite{key: key, until: until}:
		default:
		}
	}
	return true
}

// retryDelay is the wait before attempt+1: base * 2^(attempt-1), capped,
// with 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(max(d, 0), cfg.RetryMaxDelay)
}
