package feature

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

type keywordReactionConfig struct {
	Keywords []struct {
		Pattern   string   `json:"pattern"`
		Reactions []string `json:"reactions"`
	} `json:"keywords"`
}

type keyword struct {
	re        *regexp.Regexp
	reactions []string
}

// KeywordReaction answers matching texts with one of a few canned lines,
// picked by the current second.
type KeywordReaction struct {
	base
	deps     Deps
	keywords []keyword
}

func newKeywordReaction(name string, raw json.RawMessage, deps Deps) (*KeywordReaction, error) {
	var cfg keywordReactionConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Keywords) == 0 {
		return nil, errors.New("keywords: at least one required")
	}
	f := &KeywordReaction{base: base{name: name, kind: KindKeywordReaction}, deps: deps}
	for i, k := range cfg.Keywords {
		re, err := compilePattern(fmt.Sprintf("keywords[%d].pattern", i), k.Pattern, true)
		if err != nil {
			return nil, err
		}
		if len(k.Reactions) == 0 {
			return nil, fmt.Errorf("keywords[%d].reactions: at least one required", i)
		}
		f.keywords = append(f.keywords, keyword{re: re, reactions: k.Reactions})
	}
	return f, nil
}

func (f *KeywordReaction) Respond(now time.Time, text string) (string, bool, error) {
	for _, k := range f.keywords {
		if !k.re.MatchString(text) {
			continue
		}
		out, ok := render(f.deps.Emoji, k.reactions[now.Second()%len(k.reactions)])
		return out, ok, nil
	}
	return "", false, nil
}
