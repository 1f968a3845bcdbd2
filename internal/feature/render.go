package feature

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rotabot/internal/emoji"
)

// render replaces __TOKEN__ pairs in tpl, then fills emoji placeholders.
// An empty template renders nothing.
func render(pool *emoji.Pool, tpl string, pairs ...string) (string, bool) {
	if strings.TrimSpace(tpl) == "" {
		return "", false
	}
	return pool.Fill(replace(tpl, pairs...)), true
}

// replace fills tokens only, leaving emoji placeholders for the final render.
func replace(tpl string, pairs ...string) string {
	if tpl == "" || len(pairs) == 0 {
		return tpl
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// ceilMinutes rounds a remaining duration up to whole minutes.
func ceilMinutes(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatInt(int64((d+time.Minute-1)/time.Minute), 10)
}

// termEnd formats an instant as "2024年7月6日の6時".
func termEnd(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日の%d時", t.Year(), int(t.Month()), t.Day(), t.Hour())
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
