package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Mastodon       MastodonConfig       `json:"mastodon"`
	Logging        LoggingConfig        `json:"logging"`
	Ops            OpsConfig            `json:"ops,omitempty"`
	Announcements  AnnouncementsConfig  `json:"announcements"`
	Limits         LimitsConfig         `json:"limits,omitempty"`
	TelegramMirror TelegramMirrorConfig `json:"telegram_mirror,omitempty"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`

	Catalog        CatalogConfig        `json:"catalog"`
	Emoji          EmojiConfig          `json:"emoji,omitempty"`
	Features       []FeatureConfigRaw   `json:"features"`
	Feeds          FeedsConfig          `json:"feeds,omitempty"`
	WeeklyActivity WeeklyActivityConfig `json:"weekly_activity,omitempty"`
	Responder      ResponderConfig      `json:"responder"`
}

// MastodonConfig controls the social transport. Secrets live in the dotenv
// file named by CredentialsFile, never in this file.
type MastodonConfig struct {
	CredentialsFile string `json:"credentials_file"`
	// Visibility of scheduled announcements (public, unlisted, private).
	Visibility string `json:"visibility,omitempty"`
	// ListenLocal also consumes the local timeline stream.
	ListenLocal bool `json:"listen_local,omitempty"`
	// Reconnect backoff for streams (Go duration strings).
	ReconnectBase string `json:"reconnect_base,omitempty"`
	ReconnectMax  string `json:"reconnect_max,omitempty"`
	// RequestTimeout bounds every REST call.
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// AnnouncementsConfig lists the wall-clock times at which announcers run.
//
// Example:
//
//	"announcements": { "times": ["06:01:30", "18:01:30"], "timezone": "Asia/Tokyo" }
type AnnouncementsConfig struct {
	Times    []string `json:"times"`
	Timezone string   `json:"timezone,omitempty"`
}

// LimitsConfig caps outbound actions per minute. Zero means the default
// (20 statuses, 10 follow changes).
type LimitsConfig struct {
	StatusesPerMinute int `json:"statuses_per_minute,omitempty"`
	FollowsPerMinute  int `json:"follows_per_minute,omitempty"`
}

// NotifierConfig controls the async post pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted, the notifier runs with defaults.
type NotifierConfig struct {
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./rotabot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// OpsConfig controls the optional metrics/pprof HTTP server.
//
// Prefer binding to localhost. A non-loopback address requires a token or
// allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
	Pprof         bool   `json:"pprof,omitempty"`
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// TelegramMirrorConfig copies announcements into a Telegram chat. The bot
// token comes from TELEGRAM_TOKEN in the credentials file.
type TelegramMirrorConfig struct {
	Enabled  bool  `json:"enabled"`
	ChatID   int64 `json:"chat_id,omitempty"`
	ThreadID int   `json:"thread_id,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// CatalogConfig points at the monster registry.
type CatalogConfig struct {
	// Monsters is a JSON or YAML file holding the monster list.
	Monsters string `json:"monsters"`
	// AreaNames names the areas of multi-area resistances, per category.
	AreaNames map[string][]string `json:"area_names,omitempty"`
}

type EmojiConfig struct {
	Placeholder string   `json:"placeholder,omitempty"` // default "__EMOJI__"
	Shortcodes  []string `json:"shortcodes,omitempty"`
}

type FeedsConfig struct {
	Enabled       bool         `json:"enabled"`
	Interval      string       `json:"interval,omitempty"`      // default "30m"
	PostInterval  string       `json:"post_interval,omitempty"` // default "10s"
	UserAgent     string       `json:"user_agent,omitempty"`
	TitlePatterns []string     `json:"title_patterns,omitempty"`
	Sources       []FeedSource `json:"sources,omitempty"`
}

type FeedSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type WeeklyActivityConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec with optional seconds (default "0 5 0 * * 1").
	Schedule string `json:"schedule,omitempty"`
	Template string `json:"template,omitempty"`
}

// ResponderConfig controls replies to mentions and local statuses.
// Patterns are Go regular expressions.
type ResponderConfig struct {
	IgnoreAccounts     []string          `json:"ignore_accounts,omitempty"`
	RequestAll         string            `json:"request_all,omitempty"`
	RequestAllFallback string            `json:"request_all_fallback,omitempty"`
	Healthcheck        HealthcheckConfig `json:"healthcheck,omitempty"`
	CanI               CanIConfig        `json:"can_i,omitempty"`
	Follow             string            `json:"follow,omitempty"`
	Unfollow           string            `json:"unfollow,omitempty"`
}

type HealthcheckConfig struct {
	Pattern  string `json:"pattern"`
	Response string `json:"response"`
}

// CanIConfig answers "can I ...?" questions, sometimes with a poll.
type CanIConfig struct {
	Pattern     string   `json:"pattern"`
	Reply       string   `json:"reply"`
	PollReply   string   `json:"poll_reply,omitempty"`
	PollOptions []string `json:"poll_options,omitempty"`
	PollExpires string   `json:"poll_expires,omitempty"` // default "5m"
}

// FeatureConfigRaw is one announce/respond feature. Config is decoded by the
// feature kind.
type FeatureConfigRaw struct {
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Enabled *bool           `json:"enabled,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// IsEnabled treats an omitted flag as enabled.
func (f FeatureConfigRaw) IsEnabled() bool { return f.Enabled == nil || *f.Enabled }

// UnmarshalJSON disallows unknown fields so typos in feature entries are
// caught during reload.
func (f *FeatureConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Name    string          `json:"name"`
		Kind    string          `json:"kind"`
		Enabled *bool           `json:"enabled,omitempty"`
		Config  json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*f = FeatureConfigRaw(t)
	return nil
}
