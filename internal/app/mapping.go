package app

import (
	"fmt"
	"strings"
	"time"

	"rotabot/internal/announce"
	"rotabot/internal/catalog"
	"rotabot/internal/config"
	"rotabot/internal/emoji"
	"rotabot/internal/feature"
	"rotabot/internal/notifier"
	"rotabot/internal/observability"
	"rotabot/internal/respond"
	"rotabot/internal/storage"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

const (
	defaultReconnectBase = 2 * time.Second
	defaultReconnectMax  = 5 * time.Minute
	defaultFeedInterval  = 30 * time.Minute
	defaultFeedGap       = 10 * time.Second
	defaultWeeklySpec    = "0 5 0 * * 1"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	out := notifier.Config{
		StatusesPerMinute: cfg.Limits.StatusesPerMinute,
		FollowsPerMinute:  cfg.Limits.FollowsPerMinute,
	}
	n := cfg.Notifier
	if n == nil {
		return out, nil
	}
	var err error
	out.Workers, out.QueueSize, out.RetryMax = n.Workers, n.QueueSize, n.RetryMax
	out.DedupMaxEntries, out.PersistDedup = n.DedupMaxEntries, n.PersistDedup
	if out.RetryBase, err = config.ParseDurationField("notifier.retry_base", n.RetryBase); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = config.ParseDurationField("notifier.dedup_window", n.DedupWindow); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

func mapOpsConfig(cfg *config.Config) (observability.Config, error) {
	o := cfg.Ops
	out := observability.Config{
		Enabled:       o.Enabled,
		Addr:          o.Addr,
		Pprof:         o.Pprof,
		Token:         o.Token,
		AllowInsecure: o.AllowInsecure,
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationOrDefault("ops.read_timeout", o.ReadTimeout, 10*time.Second); err != nil {
		return observability.Config{}, err
	}
	if out.WriteTimeout, err = config.ParseDurationOrDefault("ops.write_timeout", o.WriteTimeout, 60*time.Second); err != nil {
		return observability.Config{}, err
	}
	if out.IdleTimeout, err = config.ParseDurationOrDefault("ops.idle_timeout", o.IdleTimeout, 60*time.Second); err != nil {
		return observability.Config{}, err
	}
	return out, nil
}

func mapRespondConfig(cfg *config.Config) (respond.Config, error) {
	r := cfg.Responder
	expires, err := config.ParseDurationField("responder.can_i.poll_expires", r.CanI.PollExpires)
	if err != nil {
		return respond.Config{}, err
	}
	return respond.Config{
		IgnoreAccounts:      r.IgnoreAccounts,
		RequestAll:          r.RequestAll,
		RequestAllFallback:  r.RequestAllFallback,
		HealthcheckPattern:  r.Healthcheck.Pattern,
		HealthcheckResponse: r.Healthcheck.Response,
		CanIPattern:         r.CanI.Pattern,
		CanIReply:           r.CanI.Reply,
		CanIPollReply:       r.CanI.PollReply,
		CanIPollOptions:     r.CanI.PollOptions,
		CanIPollExpires:     expires,
		Follow:              r.Follow,
		Unfollow:            r.Unfollow,
	}, nil
}

type feedsSettings struct {
	opts     announce.FeedsOptions
	interval time.Duration
}

func mapFeedsConfig(cfg *config.Config) (feedsSettings, error) {
	f := cfg.Feeds
	interval, err := config.ParseDurationOrDefault("feeds.interval", f.Interval, defaultFeedInterval)
	if err != nil {
		return feedsSettings{}, err
	}
	gap, err := config.ParseDurationOrDefault("feeds.post_interval", f.PostInterval, defaultFeedGap)
	if err != nil {
		return feedsSettings{}, err
	}
	srcs := make([]announce.FeedSource, 0, len(f.Sources))
	for _, s := range f.Sources {
		srcs = append(srcs, announce.FeedSource{Name: strings.TrimSpace(s.Name), URL: strings.TrimSpace(s.URL)})
	}
	return feedsSettings{
		opts: announce.FeedsOptions{
			Sources:       srcs,
			TitlePatterns: f.TitlePatterns,
			UserAgent:     f.UserAgent,
			PostInterval:  gap,
		},
		interval: interval,
	}, nil
}

func weeklySchedule(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.WeeklyActivity.Schedule); s != "" {
		return s
	}
	return defaultWeeklySpec
}

func announceClocks(cfg *config.Config) ([]announce.Clock, error) {
	cs, err := cfg.Announcements.Clocks()
	if err != nil {
		return nil, err
	}
	out := make([]announce.Clock, 0, len(cs))
	for _, c := range cs {
		out = append(out, announce.Clock{Hour: c.Hour, Minute: c.Minute, Second: c.Second})
	}
	return out, nil
}

func announceVisibility(cfg *config.Config) (transport.Visibility, error) {
	return transport.ParseVisibility(cfg.Mastodon.Visibility)
}

// content is everything features are built from. It is rebuilt as a whole on
// reload so a bad catalog never pairs with new features.
type content struct {
	catalog  *catalog.Catalog
	emoji    *emoji.Pool
	features *feature.Set
	loc      *time.Location
}

func buildContent(cfg *config.Config) (content, error) {
	loc, err := cfg.Announcements.Location()
	if err != nil {
		return content{}, err
	}
	cat, err := catalog.Load(cfg.Catalog.Monsters, cfg.Catalog.AreaNames)
	if err != nil {
		return content{}, err
	}
	pool := emoji.NewPool(cfg.Emoji.Placeholder, cfg.Emoji.Shortcodes)
	set, err := feature.Build(cfg.Features, feature.Deps{Catalog: cat, Emoji: pool, Location: loc})
	if err != nil {
		return content{}, err
	}
	return content{catalog: cat, emoji: pool, features: set, loc: loc}, nil
}
