package config

import (
	"reflect"
	"sort"

	logx "rotabot/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections, safe fields
// for logging (never secrets), and the names of features whose entry changed,
// appeared or disappeared.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)
	section := func(name string, differs bool, fields ...logx.Field) {
		if !differs {
			return
		}
		changed = append(changed, name)
		attrs = append(attrs, fields...)
	}

	section("mastodon", !reflect.DeepEqual(oldCfg.Mastodon, newCfg.Mastodon),
		logx.String("mastodon.visibility", newCfg.Mastodon.Visibility),
		logx.Bool("mastodon.listen_local", newCfg.Mastodon.ListenLocal),
	)
	section("logging", !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging),
		logx.String("logging.level", newCfg.Logging.Level),
		logx.Bool("logging.console", newCfg.Logging.Console),
		logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
	)
	section("ops", opsChanged(oldCfg.Ops, newCfg.Ops),
		logx.Bool("ops.enabled", newCfg.Ops.Enabled),
		logx.String("ops.addr", newCfg.Ops.Addr),
	)
	section("announcements", !reflect.DeepEqual(oldCfg.Announcements, newCfg.Announcements),
		logx.Strs("announcements.times", newCfg.Announcements.Times),
		logx.String("announcements.timezone", newCfg.Announcements.Timezone),
	)
	section("limits", oldCfg.Limits != newCfg.Limits,
		logx.Int("limits.statuses_per_minute", newCfg.Limits.StatusesPerMinute),
		logx.Int("limits.follows_per_minute", newCfg.Limits.FollowsPerMinute),
	)
	section("telegram_mirror", oldCfg.TelegramMirror != newCfg.TelegramMirror,
		logx.Bool("telegram_mirror.enabled", newCfg.TelegramMirror.Enabled),
	)
	section("notifier", !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier))
	section("storage", !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage))
	section("catalog", !reflect.DeepEqual(oldCfg.Catalog, newCfg.Catalog),
		logx.String("catalog.monsters", newCfg.Catalog.Monsters),
	)
	section("emoji", !reflect.DeepEqual(oldCfg.Emoji, newCfg.Emoji),
		logx.Int("emoji.shortcodes", len(newCfg.Emoji.Shortcodes)),
	)
	section("feeds", !reflect.DeepEqual(oldCfg.Feeds, newCfg.Feeds),
		logx.Bool("feeds.enabled", newCfg.Feeds.Enabled),
		logx.Int("feeds.sources", len(newCfg.Feeds.Sources)),
	)
	section("weekly_activity", oldCfg.WeeklyActivity != newCfg.WeeklyActivity,
		logx.Bool("weekly_activity.enabled", newCfg.WeeklyActivity.Enabled),
	)
	section("responder", !reflect.DeepEqual(oldCfg.Responder, newCfg.Responder))

	features := diffFeatures(oldCfg.Features, newCfg.Features)
	if len(features) > 0 {
		changed = append(changed, "features")
		attrs = append(attrs, logx.Strs("features.changed", features))
	}
	return changed, attrs, features
}

// opsChanged compares everything except the token so rotating it alone
// does not show up as a logged field.
func opsChanged(a, b OpsConfig) bool {
	a.Token, b.Token = "", ""
	return a != b
}

func diffFeatures(oldF, newF []FeatureConfigRaw) []string {
	index := func(fs []FeatureConfigRaw) map[string]FeatureConfigRaw {
		m := make(map[string]FeatureConfigRaw, len(fs))
		for _, f := range fs {
			m[f.Name] = f
		}
		return m
	}
	om, nm := index(oldF), index(newF)

	var out []string
	for name, n := range nm {
		o, ok := om[name]
		if !ok || o.Kind != n.Kind || o.IsEnabled() != n.IsEnabled() || string(o.Config) != string(n.Config) {
			out = append(out, name)
		}
	}
	for name := range om {
		if _, ok := nm[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
