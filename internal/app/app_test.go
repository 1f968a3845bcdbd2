package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rotabot/internal/config"
	"rotabot/internal/transport"
)

const testMonsters = `{"monsters": [
	{"id": "regrog", "category": "seishugosha", "display": "レグ", "official_name": "剛獣鬼ガルドドン", "nickname": "レグ", "resistances": [["呪文", "ブレス"]]}
]}`

const testConfig = `{
	"mastodon": {"visibility": "unlisted"},
	"logging": {"level": "info", "console": false},
	"announcements": {"times": ["06:01:30", "18:01:30"], "timezone": "Asia/Tokyo"},
	"catalog": {"monsters": "MONSTERS"},
	"features": [
		{"name": "defense", "kind": "rotation", "config": {
			"reference": "2020-06-05T15:00:00+09:00",
			"granularity": "duration",
			"unit": "1m",
			"items": [{"id": "juga1", "weight": 60}, {"id": "tekki1", "weight": 60}],
			"display": {"juga1": "獣化の軍団", "tekki1": "鉄機の軍団"},
			"pattern": "防衛軍",
			"templates": {"start": "now __ITEM__", "mid": "now __ITEM__", "end": "now __ITEM__", "information": "__ITEM__"}
		}},
		{"name": "monsters", "kind": "monster_info", "config": {"information": "__NAME__: __RESISTANCES__"}}
	],
	"weekly_activity": {"enabled": true},
	"feeds": {"enabled": true, "interval": "15m", "sources": [{"name": "news", "url": "https://example.com/feed"}]},
	"responder": {"can_i": {"pattern": "いい[?？]", "poll_expires": "10m"}}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	monsters := filepath.Join(dir, "monsters.json")
	if err := os.WriteFile(monsters, []byte(testMonsters), 0o600); err != nil {
		t.Fatalf("write monsters: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	body = strings.ReplaceAll(body, "MONSTERS", filepath.ToSlash(monsters))
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCheck(t *testing.T) {
	t.Parallel()

	r, err := Check(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if r.Monsters != 1 || len(r.Features) != 2 || r.Announcers != 1 || r.Responders != 2 {
		t.Fatalf("Report = %+v", r)
	}
	want := []string{
		"announce 06:01:30",
		"announce 18:01:30",
		"weekly_activity 0 5 0 * * 1",
		"feeds every 15m0s (1 sources)",
	}
	if strings.Join(r.Schedules, "|") != strings.Join(want, "|") {
		t.Fatalf("Schedules = %q, want %q", r.Schedules, want)
	}
	if r.Credentials {
		t.Fatalf("Credentials = true without a credentials file")
	}
}

func TestCheckRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from string
		to   string
	}{
		{name: "bad time", from: `"06:01:30"`, to: `"25:00:00"`},
		{name: "unknown feature kind", from: `"kind": "monster_info"`, to: `"kind": "nonsense"`},
		{name: "bad pattern", from: `"いい[?？]"`, to: `"("`},
		{name: "missing credentials file", from: `"visibility": "unlisted"`, to: `"visibility": "unlisted", "credentials_file": "/nonexistent/.env"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body := strings.Replace(testConfig, tt.from, tt.to, 1)
			if body == testConfig {
				t.Fatalf("replacement %q not found", tt.from)
			}
			if _, err := Check(writeConfig(t, body)); err == nil {
				t.Fatalf("Check accepted %s", tt.name)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	at := time.Date(2020, 6, 5, 15, 30, 0, 0, time.UTC)
	res, err := Preview(writeConfig(t, testConfig), at)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(res) != 1 || res[0].Feature != "defense" || res[0].Err != nil {
		t.Fatalf("Preview = %+v", res)
	}
	if !res[0].OK || !strings.HasPrefix(res[0].Text, "now ") {
		t.Fatalf("Preview text = %q", res[0].Text)
	}
}

func TestMapConfigs(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Limits:   config.LimitsConfig{StatusesPerMinute: 5},
		Notifier: &config.NotifierConfig{Workers: 3, RetryBase: "2s", DedupWindow: "1h"},
		Storage:  &config.StorageConfig{Driver: "SQLite", Path: "x.db"},
		Ops:      config.OpsConfig{Enabled: true, ReadTimeout: "3s"},
		Mastodon: config.MastodonConfig{Visibility: "private"},
		Responder: config.ResponderConfig{
			CanI: config.CanIConfig{Pattern: "x", PollExpires: "2m"},
		},
	}

	n, err := mapNotifierConfig(cfg)
	if err != nil {
		t.Fatalf("mapNotifierConfig: %v", err)
	}
	if n.Workers != 3 || n.StatusesPerMinute != 5 || n.RetryBase != 2*time.Second || n.DedupWindow != time.Hour {
		t.Fatalf("notifier = %+v", n)
	}

	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled || sc.Driver != "sqlite" || sc.BusyTimeout != time.Second {
		t.Fatalf("storage = %+v, %v, %v", sc, enabled, err)
	}

	ops, err := mapOpsConfig(cfg)
	if err != nil || ops.ReadTimeout != 3*time.Second || ops.WriteTimeout != time.Minute {
		t.Fatalf("ops = %+v, %v", ops, err)
	}

	r, err := mapRespondConfig(cfg)
	if err != nil || r.CanIPollExpires != 2*time.Minute {
		t.Fatalf("respond = %+v, %v", r, err)
	}

	if v, err := announceVisibility(cfg); err != nil || v != transport.Private {
		t.Fatalf("visibility = %q, %v", v, err)
	}

	fs, err := mapFeedsConfig(cfg)
	if err != nil || fs.interval != defaultFeedInterval || fs.opts.PostInterval != defaultFeedGap {
		t.Fatalf("feeds = %+v, %v", fs, err)
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sc      *config.StorageConfig
		enabled bool
		wantErr bool
	}{
		{name: "absent"},
		{name: "none", sc: &config.StorageConfig{Driver: "none"}},
		{name: "file", sc: &config.StorageConfig{Driver: "file", Path: "./data"}, enabled: true},
		{name: "sqlite without path", sc: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "unknown", sc: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, enabled, err := mapStorageConfig(&config.Config{Storage: tt.sc})
			if (err != nil) != tt.wantErr || enabled != tt.enabled {
				t.Fatalf("mapStorageConfig = %v, %v; want enabled %v, err %v", enabled, err, tt.enabled, tt.wantErr)
			}
		})
	}
}
