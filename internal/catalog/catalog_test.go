package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"
)

func res(areas ...[]Resistance) Resistances { return Resistances(areas) }

func TestResistancesJoin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b Resistances
		want Resistances
	}{
		{
			name: "same single area sorted and deduplicated",
			a:    res([]Resistance{"闇", "呪文"}),
			b:    res([]Resistance{"ブレス", "呪文"}),
			want: res([]Resistance{"呪文", "ブレス", "闇"}),
		},
		{
			name: "single area spreads over every area",
			a:    res([]Resistance{"即死"}),
			b:    res([]Resistance{"眠り"}, []Resistance{"混乱"}),
			want: res([]Resistance{"眠り", "即死"}, []Resistance{"混乱", "即死"}),
		},
		{
			name: "unknown names sort last",
			a:    res([]Resistance{"ふしぎ"}),
			b:    res([]Resistance{"炎"}),
			want: res([]Resistance{"炎", "ふしぎ"}),
		},
		{
			name: "empty side is identity",
			a:    nil,
			b:    res([]Resistance{"氷"}),
			want: res([]Resistance{"氷"}),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.a.Join(tc.b)
			if err != nil {
				t.Fatalf("Join: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Join = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResistancesJoinMismatch(t *testing.T) {
	t.Parallel()
	a := res([]Resistance{"炎"}, []Resistance{"氷"})
	b := res([]Resistance{"炎"}, []Resistance{"氷"}, []Resistance{"風"})
	if _, err := a.Join(b); err == nil {
		t.Fatalf("Join of 2 and 3 areas succeeded, want error")
	}
}

func TestResistancesFormat(t *testing.T) {
	t.Parallel()

	one := res([]Resistance{"呪文", "ブレス"})
	if got, want := one.Format(nil), "呪文、ブレス"; got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}

	two := res([]Resistance{"眠り"}, []Resistance{"混乱", "マヒ"})
	if got, want := two.Format([]string{"前半", "後半"}), "前半は 眠り、後半は 混乱、マヒ"; got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
	if got, want := two.Format([]string{"前半"}), "前半は 眠り、エリア2は 混乱、マヒ"; got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestCatalogLookup(t *testing.T) {
	t.Parallel()

	c, err := New([]Monster{
		{ID: "regrog", Category: "seishugosha", Display: "レグ", Nickname: regexp.MustCompile(`レグ|れぐ`)},
		{ID: "dark_king", Category: "jashin", OfficialName: "ダークキング", Nickname: regexp.MustCompile(`ダーク`)},
		{ID: "plain"},
	}, map[string][]string{"jashin": {"前半", "後半"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := c.DisplayName("regrog"); got != "レグ" {
		t.Fatalf("DisplayName(regrog) = %q, want レグ", got)
	}
	if got := c.DisplayName("plain"); got != "plain" {
		t.Fatalf("DisplayName(plain) = %q, want plain", got)
	}
	if got := c.DisplayName("missing"); got != "missing" {
		t.Fatalf("DisplayName(missing) = %q, want missing", got)
	}

	if err := c.Require("regrog", "nope", "gone"); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("Require err = %v, want ErrUnknownID", err)
	}
	if err := c.Require("regrog", "plain"); err != nil {
		t.Fatalf("Require: %v", err)
	}

	got := c.Match("れぐとダークどっち", nil)
	if len(got) != 2 || got[0].ID != "regrog" || got[1].ID != "dark_king" {
		t.Fatalf("Match = %v, want [regrog dark_king]", got)
	}
	got = c.Match("れぐとダークどっち", []string{"jashin"})
	if len(got) != 1 || got[0].ID != "regrog" {
		t.Fatalf("Match ignoring jashin = %v, want [regrog]", got)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	t.Parallel()
	_, err := New([]Monster{{ID: "a"}, {ID: " a "}}, nil)
	if err == nil {
		t.Fatalf("New with duplicate ids succeeded, want error")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monsters.yaml")
	body := `monsters:
  - id: regrog
    category: seishugosha
    display: レグ
    official_name: 剛獣鬼ガルドドン
    nickname: "レグ|れぐ"
    resistances:
      - [ブレス, 呪文]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, ok := c.Get("regrog")
	if !ok {
		t.Fatalf("Get(regrog) missing")
	}
	if m.OfficialName != "剛獣鬼ガルドドン" || !m.Matches("れぐ") {
		t.Fatalf("monster = %+v", m)
	}
	if got := c.FormatResistances(m); got != "ブレス、呪文" {
		t.Fatalf("FormatResistances = %q, want ブレス、呪文", got)
	}
}

func TestLoadRejectsBadPattern(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monsters.json")
	body := `{"monsters":[{"id":"x","category":"c","display":"x","official_name":"X","nickname":"("}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatalf("Load with bad nickname succeeded, want error")
	}
}
