package feature

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rotabot/internal/catalog"
	"rotabot/internal/config"
	"rotabot/internal/rotation"
)

type titleConfig struct {
	Display  string   `json:"display,omitempty"`
	Monsters []string `json:"monsters,omitempty"`
}

type tableRotationConfig struct {
	Reference string `json:"reference"`
	Tables    []struct {
		StartDay int      `json:"start_day"`
		Items    []string `json:"items"`
	} `json:"tables"`
	Titles    map[string]titleConfig `json:"titles,omitempty"`
	AreaNames []string               `json:"area_names,omitempty"`
	Pattern   string                 `json:"pattern,omitempty"`
	Templates struct {
		Start       string `json:"start,omitempty"`
		Mid         string `json:"mid,omitempty"`
		End         string `json:"end,omitempty"`
		Information string `json:"information,omitempty"`
	} `json:"templates"`
}

// TableRotation rotates titles month by month, switching between tables by
// day of month.
//
// Tokens: __ITEM__, __NEXT__, __MONSTERS__ (joined by "と") and
// __RESISTANCES__ (the title's monsters merged area by area).
type TableRotation struct {
	base
	deps    Deps
	tables  *rotation.TableSet
	titles  map[string]titleConfig
	resist  map[string]string
	pattern *regexp.Regexp
	cfg     tableRotationConfig
}

func newTableRotation(name string, raw json.RawMessage, deps Deps) (*TableRotation, error) {
	var cfg tableRotationConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	ref, err := config.ParseInstant("reference", cfg.Reference, deps.location())
	if err != nil {
		return nil, err
	}
	specs := make([]rotation.TableSpec, 0, len(cfg.Tables))
	for _, t := range cfg.Tables {
		items := make([]rotation.Item, len(t.Items))
		for i, id := range t.Items {
			items[i] = rotation.Item{ID: strings.TrimSpace(id)}
		}
		specs = append(specs, rotation.TableSpec{StartDay: t.StartDay, Items: items})
	}
	set, err := rotation.NewTableSet(ref, specs)
	if err != nil {
		return nil, err
	}
	pattern, err := compilePattern("pattern", cfg.Pattern, cfg.Templates.Information != "")
	if err != nil {
		return nil, err
	}

	f := &TableRotation{
		base:    base{name: name, kind: KindTableRotation},
		deps:    deps,
		tables:  set,
		titles:  cfg.Titles,
		resist:  make(map[string]string, len(cfg.Titles)),
		pattern: pattern,
		cfg:     cfg,
	}
	for id, title := range cfg.Titles {
		if len(title.Monsters) == 0 {
			continue
		}
		if err := deps.require(title.Monsters...); err != nil {
			return nil, fmt.Errorf("title %s: %w", id, err)
		}
		text, err := f.joinResistances(title.Monsters)
		if err != nil {
			return nil, fmt.Errorf("title %s: %w", id, err)
		}
		f.resist[id] = text
	}
	return f, nil
}

func (f *TableRotation) joinResistances(ids []string) (string, error) {
	var (
		merged catalog.Resistances
		areas  = f.cfg.AreaNames
	)
	for _, id := range ids {
		m, _ := f.deps.Catalog.Get(id)
		j, err := merged.Join(m.Resistances)
		if err != nil {
			return "", err
		}
		merged = j
		if len(areas) == 0 {
			areas = f.deps.Catalog.AreaNames(m.Category)
		}
	}
	return merged.Format(areas), nil
}

func (f *TableRotation) title(id string) string {
	if t, ok := f.titles[id]; ok && t.Display != "" {
		return t.Display
	}
	return id
}

func (f *TableRotation) monsters(id string) string {
	t := f.titles[id]
	names := make([]string, len(t.Monsters))
	for i, m := range t.Monsters {
		names[i] = f.deps.name(m, nil)
	}
	return strings.Join(names, "と")
}

func (f *TableRotation) pairs(cur, next string) []string {
	return []string{
		"__ITEM__", f.title(cur),
		"__NEXT__", f.title(next),
		"__MONSTERS__", f.monsters(cur),
		"__RESISTANCES__", f.resist[cur],
	}
}

func (f *TableRotation) Announce(now time.Time) (string, bool, error) {
	tr, err := rotation.Classify(f.tables, now)
	if err != nil {
		return "", false, err
	}
	tpl := f.cfg.Templates.Mid
	switch tr.Phase {
	case rotation.Start:
		tpl = f.cfg.Templates.Start
	case rotation.End:
		tpl = f.cfg.Templates.End
	}
	text, ok := render(f.deps.Emoji, tpl, f.pairs(tr.Current.Current.ID, tr.Upcoming.Current.ID)...)
	return text, ok, nil
}

func (f *TableRotation) Respond(now time.Time, text string) (string, bool, error) {
	if !matches(f.pattern, text) {
		return "", false, nil
	}
	st, err := f.tables.Resolve(now)
	if err != nil {
		return "", false, err
	}
	out, ok := render(f.deps.Emoji, f.cfg.Templates.Information, f.pairs(st.Current.ID, st.Next.ID)...)
	return out, ok, nil
}
