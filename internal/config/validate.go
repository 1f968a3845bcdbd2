package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Location resolves the announcement timezone; empty means time.Local.
func (a AnnouncementsConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(a.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("announcements.timezone: %w", err)
	}
	return loc, nil
}

// Clocks parses the announcement times in order.
func (a AnnouncementsConfig) Clocks() ([]ClockTime, error) {
	out := make([]ClockTime, 0, len(a.Times))
	for i, raw := range a.Times {
		c, err := ParseClock(fmt.Sprintf("announcements.times[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Validate checks everything that can be checked without building features
// or touching the network. All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Mastodon.Visibility)) {
	case "", "public", "unlisted", "private", "direct":
	default:
		add(fmt.Errorf("mastodon.visibility: unknown value %q", cfg.Mastodon.Visibility))
	}
	for _, d := range []struct{ path, raw string }{
		{"mastodon.reconnect_base", cfg.Mastodon.ReconnectBase},
		{"mastodon.reconnect_max", cfg.Mastodon.ReconnectMax},
		{"mastodon.request_timeout", cfg.Mastodon.RequestTimeout},
		{"telegram_mirror.poll_timeout", cfg.TelegramMirror.PollTimeout},
		{"ops.read_timeout", cfg.Ops.ReadTimeout},
		{"ops.write_timeout", cfg.Ops.WriteTimeout},
		{"ops.idle_timeout", cfg.Ops.IdleTimeout},
		{"feeds.interval", cfg.Feeds.Interval},
		{"feeds.post_interval", cfg.Feeds.PostInterval},
		{"responder.can_i.poll_expires", cfg.Responder.CanI.PollExpires},
	} {
		_, err := ParseDurationField(d.path, d.raw)
		add(err)
	}

	_, err := cfg.Announcements.Location()
	add(err)
	_, err = cfg.Announcements.Clocks()
	add(err)

	if n := cfg.Notifier; n != nil {
		for _, d := range []struct{ path, raw string }{
			{"notifier.retry_base", n.RetryBase},
			{"notifier.retry_max_delay", n.RetryMaxDelay},
			{"notifier.dedup_window", n.DedupWindow},
		} {
			_, err := ParseDurationField(d.path, d.raw)
			add(err)
		}
		if n.Workers < 0 || n.QueueSize < 0 || n.RetryMax < 0 {
			add(errors.New("notifier: workers, queue_size and retry_max must be >= 0"))
		}
	}
	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		_, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
		add(err)
	}
	if cfg.Limits.StatusesPerMinute < 0 || cfg.Limits.FollowsPerMinute < 0 {
		add(errors.New("limits: per-minute limits must be >= 0"))
	}
	if cfg.TelegramMirror.Enabled && cfg.TelegramMirror.ChatID == 0 {
		add(errors.New("telegram_mirror.chat_id: required when enabled"))
	}
	if strings.TrimSpace(cfg.Catalog.Monsters) == "" {
		add(errors.New("catalog.monsters: path required"))
	}

	patterns := map[string]string{
		"responder.request_all":         cfg.Responder.RequestAll,
		"responder.healthcheck.pattern": cfg.Responder.Healthcheck.Pattern,
		"responder.can_i.pattern":       cfg.Responder.CanI.Pattern,
		"responder.follow":              cfg.Responder.Follow,
		"responder.unfollow":            cfg.Responder.Unfollow,
	}
	for i, p := range cfg.Responder.IgnoreAccounts {
		patterns[fmt.Sprintf("responder.ignore_accounts[%d]", i)] = p
	}
	for i, p := range cfg.Feeds.TitlePatterns {
		patterns[fmt.Sprintf("feeds.title_patterns[%d]", i)] = p
	}
	for path, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			add(fmt.Errorf("%s: %w", path, err))
		}
	}
	if cfg.Feeds.Enabled {
		for i, src := range cfg.Feeds.Sources {
			if strings.TrimSpace(src.Name) == "" || strings.TrimSpace(src.URL) == "" {
				add(fmt.Errorf("feeds.sources[%d]: name and url are required", i))
			}
		}
	}

	names := make(map[string]bool, len(cfg.Features))
	for i, f := range cfg.Features {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			add(fmt.Errorf("features[%d]: name required", i))
			continue
		}
		if names[name] {
			add(fmt.Errorf("features[%d]: duplicate name %q", i, name))
		}
		names[name] = true
		if strings.TrimSpace(f.Kind) == "" {
			add(fmt.Errorf("features[%d] %s: kind required", i, name))
		}
	}
	return errors.Join(errs...)
}
