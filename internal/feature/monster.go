package feature

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type monsterInfoConfig struct {
	Information                   string   `json:"information"`
	InformationWithoutResistances string   `json:"information_without_resistances,omitempty"`
	IgnoreCategories              []string `json:"ignore_categories,omitempty"`
}

// MonsterInfo answers texts naming catalog monsters with what to resist.
//
// Tokens: __NAME__ (official name), __RESISTANCES__.
type MonsterInfo struct {
	base
	deps Deps
	cfg  monsterInfoConfig
}

func newMonsterInfo(name string, raw json.RawMessage, deps Deps) (*MonsterInfo, error) {
	var cfg monsterInfoConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	if deps.Catalog == nil {
		return nil, errors.New("monster_info needs a catalog")
	}
	if strings.TrimSpace(cfg.Information) == "" {
		return nil, errors.New("information: template required")
	}
	return &MonsterInfo{base: base{name: name, kind: KindMonsterInfo}, deps: deps, cfg: cfg}, nil
}

func (f *MonsterInfo) Respond(_ time.Time, text string) (string, bool, error) {
	found := f.deps.Catalog.Match(text, f.cfg.IgnoreCategories)
	if len(found) == 0 {
		return "", false, nil
	}
	lines := make([]string, 0, len(found))
	for _, m := range found {
		name := m.OfficialName
		if name == "" {
			name = m.Name()
		}
		tpl := f.cfg.Information
		if m.Resistances.Empty() {
			tpl = f.cfg.InformationWithoutResistances
		}
		if strings.TrimSpace(tpl) == "" {
			continue
		}
		lines = append(lines, replace(tpl,
			"__NAME__", name,
			"__RESISTANCES__", f.deps.Catalog.FormatResistances(m),
		))
	}
	if len(lines) == 0 {
		return "", false, nil
	}
	out, ok := render(f.deps.Emoji, strings.Join(lines, "\n"))
	return out, ok, nil
}
