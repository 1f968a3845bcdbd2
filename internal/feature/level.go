package feature

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rotabot/internal/config"
	"rotabot/internal/rotation"
)

type levelRotationConfig struct {
	Reference string   `json:"reference"`
	Levels    []string `json:"levels"`
	Subjects  []struct {
		ID     string `json:"id"`
		Offset int64  `json:"offset"`
	} `json:"subjects"`
	Pattern   string `json:"pattern,omitempty"`
	Templates struct {
		Header string `json:"header,omitempty"`
		Line   string `json:"line"`
		Footer string `json:"footer,omitempty"`
	} `json:"templates"`
}

// LevelRotation shows each subject's level for the day; subjects share one
// level cycle at different day offsets.
//
// Tokens in line: __NAME__, __LEVEL__.
type LevelRotation struct {
	base
	deps     Deps
	cycle    *rotation.Cycle
	subjects []rotation.Item
	pattern  *regexp.Regexp
	cfg      levelRotationConfig
}

func newLevelRotation(name string, raw json.RawMessage, deps Deps) (*LevelRotation, error) {
	var cfg levelRotationConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	ref, err := config.ParseInstant("reference", cfg.Reference, deps.location())
	if err != nil {
		return nil, err
	}
	levels := make([]rotation.Item, len(cfg.Levels))
	for i, l := range cfg.Levels {
		levels[i] = rotation.Item{ID: l}
	}
	c, err := rotation.NewCycle(ref, levels, rotation.ByDayOffset())
	if err != nil {
		return nil, err
	}
	if len(cfg.Subjects) == 0 {
		return nil, fmt.Errorf("%w: no subjects", rotation.ErrInvalidSchedule)
	}
	if strings.TrimSpace(cfg.Templates.Line) == "" {
		return nil, fmt.Errorf("templates.line required")
	}
	subjects := make([]rotation.Item, len(cfg.Subjects))
	ids := make([]string, len(cfg.Subjects))
	for i, s := range cfg.Subjects {
		subjects[i] = rotation.Item{ID: strings.TrimSpace(s.ID), Weight: s.Offset}
		ids[i] = subjects[i].ID
	}
	if err := deps.require(ids...); err != nil {
		return nil, err
	}
	pattern, err := compilePattern("pattern", cfg.Pattern, false)
	if err != nil {
		return nil, err
	}
	return &LevelRotation{
		base:     base{name: name, kind: KindLevelRotation},
		deps:     deps,
		cycle:    c,
		subjects: subjects,
		pattern:  pattern,
		cfg:      cfg,
	}, nil
}

func (f *LevelRotation) Announce(now time.Time) (string, bool, error) {
	levels, err := f.cycle.Levels(now, f.subjects)
	if err != nil {
		return "", false, err
	}
	lines := make([]string, 0, len(levels))
	for _, l := range levels {
		lines = append(lines, replace(f.cfg.Templates.Line,
			"__NAME__", f.deps.name(l.Subject.ID, nil),
			"__LEVEL__", l.Label.ID,
		))
	}
	body := joinNonEmpty("\n", f.cfg.Templates.Header, strings.Join(lines, "\n"), f.cfg.Templates.Footer)
	text, ok := render(f.deps.Emoji, body)
	return text, ok, nil
}

func (f *LevelRotation) Respond(now time.Time, text string) (string, bool, error) {
	if !matches(f.pattern, text) {
		return "", false, nil
	}
	return f.Announce(now)
}
