package feature

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rotabot/internal/config"
	"rotabot/internal/rotation"
)

type itemConfig struct {
	ID     string `json:"id"`
	Weight int64  `json:"weight,omitempty"`
}

type rotationConfig struct {
	Reference   string            `json:"reference"`
	Granularity string            `json:"granularity"`
	Unit        string            `json:"unit,omitempty"`
	Items       []itemConfig      `json:"items"`
	Display     map[string]string `json:"display,omitempty"`
	Pattern     string            `json:"pattern,omitempty"`
	Templates   struct {
		Start       string `json:"start,omitempty"`
		Mid         string `json:"mid,omitempty"`
		End         string `json:"end,omitempty"`
		Information string `json:"information,omitempty"`
	} `json:"templates"`
}

// Rotation announces and reports a weighted cycle.
//
// Tokens: __ITEM__, __PREVIOUS__, __NEXT__, __RESISTANCES__ in every
// template; __REMAIN__ (whole minutes, rounded up) and __LAP__ in
// information.
type Rotation struct {
	base
	deps    Deps
	cycle   *rotation.Cycle
	display map[string]string
	pattern *regexp.Regexp
	cfg     rotationConfig
}

func newRotation(name string, raw json.RawMessage, deps Deps) (*Rotation, error) {
	var cfg rotationConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	ref, err := config.ParseInstant("reference", cfg.Reference, deps.location())
	if err != nil {
		return nil, err
	}
	kind, err := rotation.ParseKind(cfg.Granularity)
	if err != nil {
		return nil, err
	}
	var g rotation.Granularity
	switch kind {
	case rotation.FixedDuration:
		unit, err := config.ParseDurationOrDefault("unit", cfg.Unit, time.Minute)
		if err != nil {
			return nil, err
		}
		g = rotation.ByDuration(unit)
	case rotation.ElapsedDays:
		g = rotation.ByDays()
	default:
		return nil, fmt.Errorf("granularity %s is not supported by rotation", kind)
	}
	c, err := rotation.NewCycle(ref, weighted(cfg.Items), g)
	if err != nil {
		return nil, err
	}
	pattern, err := compilePattern("pattern", cfg.Pattern, cfg.Templates.Information != "")
	if err != nil {
		return nil, err
	}
	return &Rotation{
		base:    base{name: name, kind: KindRotation},
		deps:    deps,
		cycle:   c,
		display: cfg.Display,
		pattern: pattern,
		cfg:     cfg,
	}, nil
}

// weighted converts item configs, defaulting an omitted weight to 1.
func weighted(in []itemConfig) []rotation.Item {
	out := make([]rotation.Item, len(in))
	for i, it := range in {
		w := it.Weight
		if w == 0 {
			w = 1
		}
		out[i] = rotation.Item{ID: strings.TrimSpace(it.ID), Weight: w}
	}
	return out
}

func (r *Rotation) Announce(now time.Time) (string, bool, error) {
	tr, err := rotation.Classify(r.cycle, now)
	if err != nil {
		return "", false, err
	}
	cur := tr.Current.Current.ID
	pairs := []string{
		"__ITEM__", r.deps.name(cur, r.display),
		"__PREVIOUS__", r.deps.name(tr.Previous.Current.ID, r.display),
		"__NEXT__", r.deps.name(tr.Upcoming.Current.ID, r.display),
		"__RESISTANCES__", r.deps.resistances(cur),
	}
	tpl := r.cfg.Templates.Mid
	switch tr.Phase {
	case rotation.Start:
		tpl = r.cfg.Templates.Start
	case rotation.End:
		tpl = r.cfg.Templates.End
	}
	text, ok := render(r.deps.Emoji, tpl, pairs...)
	return text, ok, nil
}

func (r *Rotation) Respond(now time.Time, text string) (string, bool, error) {
	if !matches(r.pattern, text) {
		return "", false, nil
	}
	st, err := r.cycle.Resolve(now)
	if err != nil {
		return "", false, err
	}
	out, ok := render(r.deps.Emoji, r.cfg.Templates.Information,
		"__ITEM__", r.deps.name(st.Current.ID, r.display),
		"__NEXT__", r.deps.name(st.Next.ID, r.display),
		"__RESISTANCES__", r.deps.resistances(st.Current.ID),
		"__REMAIN__", ceilMinutes(st.Remaining),
		"__LAP__", strconv.FormatInt(st.Lap, 10),
	)
	return out, ok, nil
}
