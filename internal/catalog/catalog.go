package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"rotabot/internal/config"
)

var ErrUnknownID = errors.New("catalog: unknown content id")

type Monster struct {
	ID           string
	Category     string
	Display      string
	OfficialName string
	Nickname     *regexp.Regexp
	Resistances  Resistances
}

// Name is the short display name, falling back to the ID.
func (m Monster) Name() string {
	if m.Display != "" {
		return m.Display
	}
	return m.ID
}

// Matches reports whether text refers to the monster by nickname.
func (m Monster) Matches(text string) bool {
	return m.Nickname != nil && m.Nickname.MatchString(text)
}

type Catalog struct {
	order     []string
	byID      map[string]Monster
	areaNames map[string][]string
}

func New(monsters []Monster, areaNames map[string][]string) (*Catalog, error) {
	c := &Catalog{
		order:     make([]string, 0, len(monsters)),
		byID:      make(map[string]Monster, len(monsters)),
		areaNames: make(map[string][]string, len(areaNames)),
	}
	for i, m := range monsters {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: monster %d has no id", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %q", id)
		}
		m.ID = id
		m.Resistances = m.Resistances.clone()
		c.byID[id] = m
		c.order = append(c.order, id)
	}
	for k, v := range areaNames {
		c.areaNames[k] = slices.Clone(v)
	}
	return c, nil
}

type fileMonster struct {
	ID           string     `json:"id"`
	Category     string     `json:"category"`
	Display      string     `json:"display"`
	OfficialName string     `json:"official_name"`
	Nickname     string     `json:"nickname,omitempty"`
	Resistances  [][]string `json:"resistances,omitempty"`
}

type fileDoc struct {
	Monsters  []fileMonster       `json:"monsters"`
	AreaNames map[string][]string `json:"area_names,omitempty"`
}

// Load reads a JSON or YAML monster file. Area names given by the caller
// override those carried in the file.
func Load(path string, areaNames map[string][]string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	var doc fileDoc
	if err := config.DecodeFile(path, b, &doc); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	monsters := make([]Monster, 0, len(doc.Monsters))
	for _, fm := range doc.Monsters {
		m := Monster{
			ID:           fm.ID,
			Category:     fm.Category,
			Display:      fm.Display,
			OfficialName: fm.OfficialName,
		}
		if strings.TrimSpace(fm.Nickname) != "" {
			re, err := regexp.Compile(fm.Nickname)
			if err != nil {
				return nil, fmt.Errorf("catalog: %s nickname: %w", fm.ID, err)
			}
			m.Nickname = re
		}
		for _, area := range fm.Resistances {
			rs := make([]Resistance, len(area))
			for i, s := range area {
				rs[i] = Resistance(strings.TrimSpace(s))
			}
			m.Resistances = append(m.Resistances, rs)
		}
		monsters = append(monsters, m)
	}
	names := doc.AreaNames
	if names == nil {
		names = make(map[string][]string, len(areaNames))
	}
	for k, v := range areaNames {
		names[k] = v
	}
	return New(monsters, names)
}

func (c *Catalog) Len() int { return len(c.order) }

func (c *Catalog) Get(id string) (Monster, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Require fails with ErrUnknownID naming every id missing from the catalog.
func (c *Catalog) Require(ids ...string) error {
	var missing []string
	for _, id := range ids {
		if _, ok := c.byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownID, strings.Join(missing, ", "))
	}
	return nil
}

// DisplayName returns the monster's display name, or id itself when the
// catalog has no such entry.
func (c *Catalog) DisplayName(id string) string {
	if m, ok := c.byID[id]; ok {
		return m.Name()
	}
	return id
}

func (c *Catalog) AreaNames(category string) []string {
	return slices.Clone(c.areaNames[category])
}

// FormatResistances renders m's resistances with its category's area names.
func (c *Catalog) FormatResistances(m Monster) string {
	return m.Resistances.Format(c.areaNames[m.Category])
}

// Match returns monsters whose nickname matches text, in file order,
// skipping the given categories.
func (c *Catalog) Match(text string, ignoreCategories []string) []Monster {
	var out []Monster
	for _, id := range c.order {
		m := c.byID[id]
		if slices.Contains(ignoreCategories, m.Category) {
			continue
		}
		if m.Matches(text) {
			out = append(out, m)
		}
	}
	return out
}
