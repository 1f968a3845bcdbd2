package feature

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"rotabot/internal/config"
	"rotabot/internal/rotation"
)

type termRotationConfig struct {
	Reference string            `json:"reference"`
	Days      []int             `json:"days"`
	Opening   string            `json:"opening"`
	Span      string            `json:"span"`
	Items     []string          `json:"items"`
	Display   map[string]string `json:"display,omitempty"`
	Pattern   string            `json:"pattern,omitempty"`
	Templates struct {
		FirstDay    string `json:"first_day,omitempty"`
		WithinTerm  string `json:"within_term,omitempty"`
		Information string `json:"information,omitempty"`
		Closed      string `json:"closed,omitempty"`
	} `json:"templates"`
}

// TermRotation announces a content that opens on fixed days of the month
// for a limited span, featuring the next item at every opening.
//
// Tokens: __ITEM__, __RESISTANCES__, __END_OF_TERM__.
type TermRotation struct {
	base
	deps    Deps
	cycle   *rotation.OpeningCycle
	display map[string]string
	pattern *regexp.Regexp
	cfg     termRotationConfig
}

func newTermRotation(name string, raw json.RawMessage, deps Deps) (*TermRotation, error) {
	var cfg termRotationConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	loc := deps.location()
	ref, err := config.ParseInstant("reference", cfg.Reference, loc)
	if err != nil {
		return nil, err
	}
	opening, err := config.ParseClock("opening", cfg.Opening)
	if err != nil {
		return nil, err
	}
	span, err := config.ParseDurationField("span", cfg.Span)
	if err != nil {
		return nil, err
	}
	window, err := rotation.NewTermWindow(cfg.Days, opening.Offset(), span, loc)
	if err != nil {
		return nil, err
	}
	items := make([]rotation.Item, len(cfg.Items))
	for i, id := range cfg.Items {
		items[i] = rotation.Item{ID: strings.TrimSpace(id)}
	}
	c, err := rotation.NewOpeningCycle(ref, window, items)
	if err != nil {
		return nil, err
	}
	pattern, err := compilePattern("pattern", cfg.Pattern, cfg.Templates.Information != "")
	if err != nil {
		return nil, err
	}
	return &TermRotation{
		base:    base{name: name, kind: KindTermRotation},
		deps:    deps,
		cycle:   c,
		display: cfg.Display,
		pattern: pattern,
		cfg:     cfg,
	}, nil
}

func (f *TermRotation) state(now time.Time) (rotation.TermState, []string, error) {
	ts, err := f.cycle.Window().State(now)
	if err != nil || ts.Kind == rotation.Closed {
		return ts, nil, err
	}
	st, err := f.cycle.Resolve(now)
	if err != nil {
		return ts, nil, err
	}
	id := st.Current.ID
	return ts, []string{
		"__ITEM__", f.deps.name(id, f.display),
		"__RESISTANCES__", f.deps.resistances(id),
		"__END_OF_TERM__", termEnd(ts.Window.End),
	}, nil
}

func (f *TermRotation) Announce(now time.Time) (string, bool, error) {
	ts, pairs, err := f.state(now)
	if err != nil {
		return "", false, err
	}
	var tpl string
	switch ts.Kind {
	case rotation.FirstDay:
		tpl = f.cfg.Templates.FirstDay
	case rotation.WithinTerm:
		tpl = f.cfg.Templates.WithinTerm
	case rotation.Closed:
		return "", false, nil
	}
	text, ok := render(f.deps.Emoji, tpl, pairs...)
	return text, ok, nil
}

func (f *TermRotation) Respond(now time.Time, text string) (string, bool, error) {
	if !matches(f.pattern, text) {
		return "", false, nil
	}
	ts, pairs, err := f.state(now)
	if err != nil {
		return "", false, err
	}
	if ts.Kind == rotation.Closed {
		out, ok := render(f.deps.Emoji, f.cfg.Templates.Closed)
		return out, ok, nil
	}
	out, ok := render(f.deps.Emoji, f.cfg.Templates.Information, pairs...)
	return out, ok, nil
}
