package feature

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rotabot/internal/rotation"
)

const (
	framingStartsTomorrow = "starts_tomorrow"
	framingEndsToday      = "ends_today"
)

type calendarConfig struct {
	// Framing is starts_tomorrow (default) or ends_today.
	Framing   string `json:"framing,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`
	Separator string `json:"separator,omitempty"`
	// ItemPrefix is prepended to every item, e.g. "__EMOJI__ ".
	ItemPrefix string `json:"item_prefix,omitempty"`
	Entries    []struct {
		ID       string `json:"id"`
		Display  string `json:"display,omitempty"`
		Days     []int  `json:"days,omitempty"`
		Months   []int  `json:"months,omitempty"`
		Weekdays []int  `json:"weekdays,omitempty"`
	} `json:"entries"`
	Templates struct {
		Today    string `json:"today,omitempty"`
		Tomorrow string `json:"tomorrow,omitempty"`
	} `json:"templates"`
}

// Calendar announces date-bound contents.
//
// With starts_tomorrow framing the post lists what happens today, then what
// happens tomorrow. With ends_today framing a content that starts again
// tomorrow ends today, so the tomorrow part comes first.
//
// Tokens: __CONTENTS__.
type Calendar struct {
	base
	deps    Deps
	window  *rotation.CalendarWindow
	display map[string]string
	cfg     calendarConfig
}

func newCalendar(name string, raw json.RawMessage, deps Deps) (*Calendar, error) {
	var cfg calendarConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	switch cfg.Framing {
	case "":
		cfg.Framing = framingStartsTomorrow
	case framingStartsTomorrow, framingEndsToday:
	default:
		return nil, fmt.Errorf("framing: unknown value %q", cfg.Framing)
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = "、"
	}
	if cfg.Separator == "" {
		cfg.Separator = "\n"
	}
	entries := make([]rotation.CalendarEntry, len(cfg.Entries))
	display := make(map[string]string, len(cfg.Entries))
	for i, e := range cfg.Entries {
		rule := rotation.CalendarRule{Days: e.Days}
		for _, m := range e.Months {
			rule.Months = append(rule.Months, time.Month(m))
		}
		for _, w := range e.Weekdays {
			rule.Weekdays = append(rule.Weekdays, time.Weekday(w))
		}
		id := strings.TrimSpace(e.ID)
		entries[i] = rotation.CalendarEntry{Item: rotation.Item{ID: id}, Rule: rule}
		display[id] = e.Display
	}
	w, err := rotation.NewCalendarWindow(entries, deps.location())
	if err != nil {
		return nil, err
	}
	return &Calendar{
		base:    base{name: name, kind: KindCalendar},
		deps:    deps,
		window:  w,
		display: display,
		cfg:     cfg,
	}, nil
}

func (f *Calendar) part(tpl string, items []rotation.Item) string {
	if len(items) == 0 {
		return ""
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = f.cfg.ItemPrefix + f.deps.name(it.ID, f.display)
	}
	return replace(tpl, "__CONTENTS__", strings.Join(names, f.cfg.Delimiter))
}

func (f *Calendar) Announce(now time.Time) (string, bool, error) {
	today := f.part(f.cfg.Templates.Today, f.window.Today(now))
	tomorrow := f.part(f.cfg.Templates.Tomorrow, f.window.Tomorrow(now))
	var body string
	if f.cfg.Framing == framingEndsToday {
		body = joinNonEmpty(f.cfg.Separator, tomorrow, today)
	} else {
		body = joinNonEmpty(f.cfg.Separator, today, tomorrow)
	}
	text, ok := render(f.deps.Emoji, body)
	return text, ok, nil
}
