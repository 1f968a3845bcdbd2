// Package app wires rotabot together: configuration, logging, storage,
// content, the outbound pipeline, transports, the responder, schedules and
// the ops server, all under one supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"rotabot/internal/announce"
	"rotabot/internal/config"
	"rotabot/internal/eventbus"
	"rotabot/internal/feature"
	"rotabot/internal/notifier"
	"rotabot/internal/observability"
	"rotabot/internal/respond"
	rtsup "rotabot/internal/runtime/supervisor"
	"rotabot/internal/storage"
	"rotabot/internal/task/scheduler"
	"rotabot/internal/transport"
	"rotabot/internal/transport/mastodon"
	"rotabot/internal/transport/telegram"
	logx "rotabot/pkg/logx"
	"rotabot/pkg/systemd"
)

const (
	schedWeekly = "weekly_activity"
	schedFeeds  = "feeds.poll"
)

type App struct {
	cfgm  *config.ConfigManager
	creds config.Credentials

	sup  *rtsup.Supervisor
	log  logx.Logger
	logs *logx.Service
	bus  *eventbus.Mem

	store   storage.Store
	content atomic.Pointer[content]

	masto *mastodon.Client
	tg    *telegram.Adapter // nil when no Telegram token is configured
	notif *notifier.Service
	resp  *respond.Processor

	sched  *scheduler.Service
	ann    *announce.Service
	weekly *announce.Weekly
	feeds  atomic.Pointer[announce.Feeds]

	metrics *observability.Metrics
	ops     *observability.Server
	sd      *systemd.Notifier

	self   atomic.Pointer[transport.Account]
	events chan transport.Event
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	creds, err := config.LoadCredentials(cfg.Mastodon.CredentialsFile)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLogConfig(cfg), nil)
	a := &App{cfgm: cfgm, creds: creds, logs: logs, log: log.With(logx.String("comp", "app")), bus: eventbus.New()}

	if creds.TelegramToken != "" && (cfg.TelegramMirror.Enabled || cfg.Logging.Telegram.Enabled) {
		pollTimeout, err := config.ParseDurationOrDefault("telegram_mirror.poll_timeout", cfg.TelegramMirror.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		tg, err := telegram.New(telegram.Config{
			Token:       creds.TelegramToken,
			ChatID:      cfg.TelegramMirror.ChatID,
			ThreadID:    cfg.TelegramMirror.ThreadID,
			PollTimeout: pollTimeout,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		a.tg = tg
		logs.SetSender(tg)
	} else if cfg.TelegramMirror.Enabled || cfg.Logging.Telegram.Enabled {
		a.log.Warn("telegram enabled in config but TELEGRAM_TOKEN is missing; skipping")
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}
	if a.store == nil {
		a.store = storage.NewMemory()
	}

	c, err := buildContent(cfg)
	if err != nil {
		return nil, err
	}
	a.content.Store(&c)

	reqTimeout, err := config.ParseDurationField("mastodon.request_timeout", cfg.Mastodon.RequestTimeout)
	if err != nil {
		return nil, err
	}
	a.masto, err = mastodon.New(mastodon.Config{
		Server:         creds.Server,
		ClientID:       creds.ClientID,
		ClientSecret:   creds.ClientSecret,
		AccessToken:    creds.AccessToken,
		RequestTimeout: reqTimeout,
	}, log.With(logx.String("comp", "mastodon")))
	if err != nil {
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.notif = notifier.New(ncfg, a.masto, log.With(logx.String("comp", "notifier")), a.bus, a.store)

	rcfg, err := mapRespondConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.resp, err = respond.New(respond.Options{
		Config:                rcfg,
		Responders:            a.responders,
		Out:                   a.notif,
		Emoji:                 c.emoji,
		Bus:                   a.bus,
		Log:                   log,
		Clock:                 a.now,
		SkipLocalPublicOnHome: cfg.Mastodon.ListenLocal,
	})
	if err != nil {
		return nil, err
	}

	a.sched = scheduler.New(scheduler.Config{Location: c.loc}, log.With(logx.String("comp", "scheduler")))
	vis, err := announceVisibility(cfg)
	if err != nil {
		return nil, err
	}
	annOpts := announce.Options{Announcers: a.announcers, Out: a.notif, Bus: a.bus, Log: log, Visibility: vis}
	if a.tg != nil && cfg.TelegramMirror.Enabled {
		annOpts.Mirror = a.tg
	}
	a.ann = announce.New(annOpts)
	a.weekly = announce.NewWeekly(announce.WeeklyOptions{
		Source:   a.masto,
		Store:    a.store,
		Out:      a.notif,
		Template: cfg.WeeklyActivity.Template,
		Location: c.loc,
		Log:      log,
	})

	opsCfg, err := mapOpsConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.metrics = observability.NewMetrics(a.bus.Missed)
	a.ops = observability.NewServer(opsCfg, a.metrics, a.health, log)
	a.sd = systemd.New(log)
	a.events = make(chan transport.Event, 256)
	return a, nil
}

func (a *App) now() time.Time {
	if c := a.content.Load(); c != nil {
		return time.Now().In(c.loc)
	}
	return time.Now()
}

func (a *App) features() *feature.Set {
	if c := a.content.Load(); c != nil {
		return c.features
	}
	return nil
}

func (a *App) announcers() []feature.Announcer { return a.features().Announcers() }
func (a *App) responders() []feature.Responder { return a.features().Responders() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()
	cfg := a.cfgm.Get()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		_, err := buildContent(cfg)
		return err
	})

	actx, cancel := context.WithTimeout(ctx, 30*time.Second)
	self, err := a.masto.CurrentAccount(actx)
	cancel()
	if err != nil {
		return fmt.Errorf("resolve bot account: %w", err)
	}
	a.self.Store(&self)
	a.resp.SetSelf(self)
	a.log.Info("connected", logx.String("acct", self.Acct), logx.String("id", self.ID))

	a.notif.Start(run)
	if a.tg != nil {
		a.tg.SetStatus(a.statusText)
		if err := a.tg.Start(run); err != nil {
			return err
		}
	}

	a.startStreams(cfg)
	a.sup.Go("respond", func(c context.Context) error { return a.resp.Consume(c, a.events) })
	a.sup.Go("metrics", func(c context.Context) error { return a.metrics.Consume(c, a.bus) })

	if err := a.schedule(cfg); err != nil {
		return err
	}
	a.sched.Start(run)

	if opsCfg, err := mapOpsConfig(cfg); err == nil {
		a.ops.Reconfigure(run, opsCfg)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", func(c context.Context) error { return a.cfgm.Watch(c) })
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return a.sd.Watchdog(c, func() bool { return a.sup.Context().Err() == nil })
	})

	a.sd.Ready()
	a.sd.Status(fmt.Sprintf("connected as %s, %d features", self.Acct, len(a.features().All())))
	a.log.Info("app started")
	return nil
}

func (a *App) startStreams(cfg *config.Config) {
	base, _ := config.ParseDurationOrDefault("mastodon.reconnect_base", cfg.Mastodon.ReconnectBase, defaultReconnectBase)
	maxWait, _ := config.ParseDurationOrDefault("mastodon.reconnect_max", cfg.Mastodon.ReconnectMax, defaultReconnectMax)

	kinds := []transport.StreamKind{transport.StreamUser}
	if cfg.Mastodon.ListenLocal {
		kinds = append(kinds, transport.StreamLocal)
	}
	for _, kind := range kinds {
		a.sup.GoRestart("stream."+string(kind), func(c context.Context) error {
			err := a.masto.Stream(c, kind, a.events)
			if c.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("stream ended")
			}
			return err
		}, rtsup.WithRestartBackoff(base, maxWait))
	}
}

// schedule (re)registers every timed job from cfg.
func (a *App) schedule(cfg *config.Config) error {
	clocks, err := announceClocks(cfg)
	if err != nil {
		return err
	}
	if err := a.ann.Schedule(a.sched, clocks); err != nil {
		return err
	}

	a.sched.Remove(schedWeekly)
	if cfg.WeeklyActivity.Enabled {
		if err := a.sched.AddSchedule(schedWeekly, weeklySchedule(cfg), a.weekly.Run); err != nil {
			return fmt.Errorf("weekly_activity.schedule: %w", err)
		}
	}

	a.sched.Remove(schedFeeds)
	a.feeds.Store(nil)
	if cfg.Feeds.Enabled && len(cfg.Feeds.Sources) > 0 {
		fs, err := mapFeedsConfig(cfg)
		if err != nil {
			return err
		}
		fs.opts.Store, fs.opts.Out, fs.opts.Log = a.store, a.notif, a.log
		feeds, err := announce.NewFeeds(fs.opts)
		if err != nil {
			return err
		}
		a.feeds.Store(feeds)
		if err := a.sched.AddInterval(schedFeeds, fs.interval, feeds.Run); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) health() (bool, any) {
	detail := map[string]any{}
	healthy := a.sup != nil && a.sup.Context().Err() == nil
	if self := a.self.Load(); self != nil {
		detail["acct"] = self.Acct
	}
	var down []string
	if a.sup != nil {
		for _, t := range a.sup.Snapshot() {
			if strings.HasPrefix(t.Name, "stream.") && !t.Running {
				down = append(down, t.Name)
			}
		}
	}
	if len(down) > 0 {
		healthy = false
		detail["streams_down"] = down
	}
	return healthy, detail
}

func (a *App) statusText() string {
	var b strings.Builder
	if self := a.self.Load(); self != nil {
		fmt.Fprintf(&b, "@%s\n", self.Acct)
	}
	fmt.Fprintf(&b, "features: %d\n", len(a.features().All()))
	for _, s := range a.sched.Snapshot() {
		fmt.Fprintf(&b, "%s next=%s runs=%d", s.Name, s.Next.Format(time.DateTime), s.Runs)
		if s.LastErr != "" {
			fmt.Fprintf(&b, " err=%s", s.LastErr)
		}
		b.WriteString("\n")
	}
	if a.sup != nil {
		for _, t := range a.sup.Snapshot() {
			if strings.HasPrefix(t.Name, "stream.") {
				fmt.Fprintf(&b, "%s running=%t restarts=%d\n", t.Name, t.Running, t.Restarts)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("notifier", 5*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("telegram", 2*time.Second, func(c context.Context) error {
		if a.tg != nil {
			return a.tg.Stop(c)
		}
		return nil
	})
	step("storage", time.Second, func(c context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	return a.logs.Close()
}
