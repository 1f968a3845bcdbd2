package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// Resistance is a status ailment or element a party should resist.
// Names outside the canonical list are kept verbatim and sort last.
type Resistance string

var canonical = []Resistance{
	"呪文", "ブレス", "眠り", "混乱", "マヒ", "即死", "封印", "幻惑",
	"踊り", "どく", "魅了", "呪い", "転び", "しばり", "おびえ", "笑い",
	"炎", "氷", "風", "雷", "土", "光", "闇",
}

func (r Resistance) rank() int {
	if i := slices.Index(canonical, r); i >= 0 {
		return i
	}
	return len(canonical)
}

func compareResistance(a, b Resistance) int {
	if ra, rb := a.rank(), b.rank(); ra != rb {
		return ra - rb
	}
	return strings.Compare(string(a), string(b))
}

// Resistances lists resistances per area. A single area means the fight has
// no separate areas.
type Resistances [][]Resistance

func (r Resistances) Empty() bool {
	for _, area := range r {
		if len(area) > 0 {
			return false
		}
	}
	return true
}

// Join merges two monsters' needs area by area. Area counts must match
// unless one side has a single area, which then applies to every area.
func (r Resistances) Join(o Resistances) (Resistances, error) {
	switch {
	case len(r) == 0:
		return o.clone(), nil
	case len(o) == 0:
		return r.clone(), nil
	case len(r) != len(o) && len(r) != 1 && len(o) != 1:
		return nil, fmt.Errorf("catalog: cannot join resistances of %d and %d areas", len(r), len(o))
	}
	larger, smaller := r, o
	if len(o) > len(r) {
		larger, smaller = o, r
	}
	out := make(Resistances, len(larger))
	for i, area := range larger {
		merged := append(slices.Clone(area), smaller[i%len(smaller)]...)
		slices.SortFunc(merged, compareResistance)
		out[i] = slices.Compact(merged)
	}
	return out, nil
}

func (r Resistances) clone() Resistances {
	out := make(Resistances, len(r))
	for i, area := range r {
		out[i] = slices.Clone(area)
	}
	return out
}

// Format renders "a、b" for a single area, and "Xは a、b、Yは c" with the
// given area names otherwise. Missing names fall back to "エリアN".
func (r Resistances) Format(areaNames []string) string {
	join := func(area []Resistance) string {
		parts := make([]string, len(area))
		for i, x := range area {
			parts[i] = string(x)
		}
		return strings.Join(parts, "、")
	}
	if len(r) == 1 {
		return join(r[0])
	}
	parts := make([]string, 0, len(r))
	for i, area := range r {
		name := fmt.Sprintf("エリア%d", i+1)
		if i < len(areaNames) && strings.TrimSpace(areaNames[i]) != "" {
			name = areaNames[i]
		}
		parts = append(parts, name+"は "+join(area))
	}
	return strings.Join(parts, "、")
}
