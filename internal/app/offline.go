package app

import (
	"fmt"
	"time"

	"rotabot/internal/announce"
	"rotabot/internal/config"
	"rotabot/internal/task/scheduler"
)

// Report summarizes a successful Check.
type Report struct {
	Monsters    int
	Features    []string
	Announcers  int
	Responders  int
	Schedules   []string
	Credentials bool
}

func loadOffline(cfgPath string) (*config.Config, content, error) {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return nil, content{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, content{}, err
	}
	c, err := buildContent(cfg)
	if err != nil {
		return nil, content{}, err
	}
	return cfg, c, nil
}

// Check loads and validates everything Start would, without any network.
func Check(cfgPath string) (Report, error) {
	cfg, c, err := loadOffline(cfgPath)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		Monsters:   c.catalog.Len(),
		Announcers: len(c.features.Announcers()),
		Responders: len(c.features.Responders()),
	}
	for _, f := range c.features.All() {
		r.Features = append(r.Features, fmt.Sprintf("%s (%s)", f.Name(), f.Kind()))
	}
	for _, fn := range []func(*config.Config) error{
		func(cfg *config.Config) error { _, _, err := mapStorageConfig(cfg); return err },
		func(cfg *config.Config) error { _, err := mapNotifierConfig(cfg); return err },
		func(cfg *config.Config) error { _, err := mapRespondConfig(cfg); return err },
		func(cfg *config.Config) error { _, err := mapOpsConfig(cfg); return err },
		func(cfg *config.Config) error { _, err := mapFeedsConfig(cfg); return err },
	} {
		if err := fn(cfg); err != nil {
			return Report{}, err
		}
	}

	clocks, err := announceClocks(cfg)
	if err != nil {
		return Report{}, err
	}
	for _, cl := range clocks {
		r.Schedules = append(r.Schedules, fmt.Sprintf("announce %02d:%02d:%02d", cl.Hour, cl.Minute, cl.Second))
	}
	if cfg.WeeklyActivity.Enabled {
		spec := weeklySchedule(cfg)
		if _, err := scheduler.ParseSchedule(spec); err != nil {
			return Report{}, fmt.Errorf("weekly_activity.schedule: %w", err)
		}
		r.Schedules = append(r.Schedules, "weekly_activity "+spec)
	}
	if cfg.Feeds.Enabled {
		fs, err := mapFeedsConfig(cfg)
		if err != nil {
			return Report{}, err
		}
		if _, err := announce.NewFeeds(fs.opts); err != nil {
			return Report{}, err
		}
		r.Schedules = append(r.Schedules, fmt.Sprintf("feeds every %s (%d sources)", fs.interval, len(fs.opts.Sources)))
	}

	if cfg.Mastodon.CredentialsFile != "" {
		if _, err := config.LoadCredentials(cfg.Mastodon.CredentialsFile); err != nil {
			return Report{}, err
		}
		r.Credentials = true
	}
	return r, nil
}

// Preview renders every announcer at the instant without posting.
func Preview(cfgPath string, at time.Time) ([]announce.Result, error) {
	_, c, err := loadOffline(cfgPath)
	if err != nil {
		return nil, err
	}
	svc := announce.New(announce.Options{Announcers: c.features.Announcers})
	return svc.Preview(at.In(c.loc)), nil
}
