package feature

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rotabot/internal/catalog"
	"rotabot/internal/config"
	"rotabot/internal/emoji"
)

type Kind string

const (
	KindRotation        Kind = "rotation"
	KindTableRotation   Kind = "table_rotation"
	KindLevelRotation   Kind = "level_rotation"
	KindTermRotation    Kind = "term_rotation"
	KindCalendar        Kind = "calendar"
	KindKeywordReaction Kind = "keyword_reaction"
	KindMonsterInfo     Kind = "monster_info"
)

var ErrUnknownKind = errors.New("feature: unknown kind")

// Deps are the shared read-only inputs every feature may use.
type Deps struct {
	Catalog  *catalog.Catalog
	Emoji    *emoji.Pool
	Location *time.Location
}

func (d Deps) location() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

// name resolves an item's display name: catalog first, then the feature's
// own display map, then the id.
func (d Deps) name(id string, display map[string]string) string {
	if d.Catalog != nil {
		if m, ok := d.Catalog.Get(id); ok {
			return m.Name()
		}
	}
	if s := display[id]; s != "" {
		return s
	}
	return id
}

func (d Deps) resistances(id string) string {
	if d.Catalog == nil {
		return ""
	}
	m, ok := d.Catalog.Get(id)
	if !ok {
		return ""
	}
	return d.Catalog.FormatResistances(m)
}

func (d Deps) require(ids ...string) error {
	if d.Catalog == nil {
		return fmt.Errorf("%w: no catalog loaded", catalog.ErrUnknownID)
	}
	return d.Catalog.Require(ids...)
}

type Feature interface {
	Name() string
	Kind() Kind
}

// Announcer produces the scheduled post for now. ok is false when the
// feature has nothing to say at that instant.
type Announcer interface {
	Feature
	Announce(now time.Time) (text string, ok bool, err error)
}

// Responder answers a status text. ok is false when the text is not about
// this feature.
type Responder interface {
	Feature
	Respond(now time.Time, text string) (reply string, ok bool, err error)
}

// Set is the built feature list in configuration order.
type Set struct {
	all        []Feature
	announcers []Announcer
	responders []Responder
}

func (s *Set) All() []Feature {
	if s == nil {
		return nil
	}
	return s.all
}

func (s *Set) Announcers() []Announcer {
	if s == nil {
		return nil
	}
	return s.announcers
}

func (s *Set) Responders() []Responder {
	if s == nil {
		return nil
	}
	return s.responders
}

// Build constructs every enabled feature. All failures are reported together.
func Build(raw []config.FeatureConfigRaw, deps Deps) (*Set, error) {
	s := &Set{}
	var errs []error
	for _, fc := range raw {
		if !fc.IsEnabled() {
			continue
		}
		f, err := BuildOne(fc, deps)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.all = append(s.all, f)
		if a, ok := f.(Announcer); ok {
			s.announcers = append(s.announcers, a)
		}
		if r, ok := f.(Responder); ok {
			s.responders = append(s.responders, r)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func BuildOne(fc config.FeatureConfigRaw, deps Deps) (Feature, error) {
	name := strings.TrimSpace(fc.Name)
	if name == "" {
		return nil, errors.New("feature: name required")
	}
	var (
		f   Feature
		err error
	)
	switch Kind(strings.ToLower(strings.TrimSpace(fc.Kind))) {
	case KindRotation:
		f, err = newRotation(name, fc.Config, deps)
	case KindTableRotation:
		f, err = newTableRotation(name, fc.Config, deps)
	case KindLevelRotation:
		f, err = newLevelRotation(name, fc.Config, deps)
	case KindTermRotation:
		f, err = newTermRotation(name, fc.Config, deps)
	case KindCalendar:
		f, err = newCalendar(name, fc.Config, deps)
	case KindKeywordReaction:
		f, err = newKeywordReaction(name, fc.Config, deps)
	case KindMonsterInfo:
		f, err = newMonsterInfo(name, fc.Config, deps)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownKind, fc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", name, err)
	}
	return f, nil
}

func decode(raw []byte, out any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return errors.New("config required")
	}
	if err := config.DecodeStrict(raw, out); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// compilePattern returns nil for an empty optional pattern.
func compilePattern(field, raw string, required bool) (*regexp.Regexp, error) {
	if strings.TrimSpace(raw) == "" {
		if required {
			return nil, fmt.Errorf("%s: pattern required", field)
		}
		return nil, nil
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return re, nil
}

func matches(re *regexp.Regexp, text string) bool {
	return re != nil && re.MatchString(text)
}

type base struct {
	name string
	kind Kind
}

func (b base) Name() string { return b.name }
func (b base) Kind() Kind   { return b.kind }
