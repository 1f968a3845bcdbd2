// Package emoji substitutes custom emoji shortcodes into rendered text.
package emoji

import (
	"math/rand/v2"
	"strings"
	"sync"
)

const DefaultPlaceholder = "__EMOJI__"

// Pool hands out shortcodes without repeats until every one has been used,
// then reshuffles. The zero value and a nil *Pool leave text untouched.
type Pool struct {
	placeholder string
	codes       []string

	mu   sync.Mutex
	deck []string
	shuf func(n int, swap func(i, j int))
}

func NewPool(placeholder string, shortcodes []string) *Pool {
	if strings.TrimSpace(placeholder) == "" {
		placeholder = DefaultPlaceholder
	}
	codes := make([]string, 0, len(shortcodes))
	for _, c := range shortcodes {
		c = strings.Trim(strings.TrimSpace(c), ":")
		if c != "" {
			codes = append(codes, c)
		}
	}
	return &Pool{placeholder: placeholder, codes: codes, shuf: rand.Shuffle}
}

func (p *Pool) Placeholder() string {
	if p == nil || p.placeholder == "" {
		return DefaultPlaceholder
	}
	return p.placeholder
}

// Next returns the next shortcode formatted as ":code:", or "" for an empty pool.
func (p *Pool) Next() string {
	if p == nil || len(p.codes) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return ":" + p.nextLocked() + ":"
}

func (p *Pool) nextLocked() string {
	if len(p.deck) == 0 {
		p.deck = append(p.deck[:0], p.codes...)
		p.shuf(len(p.deck), func(i, j int) { p.deck[i], p.deck[j] = p.deck[j], p.deck[i] })
	}
	last := len(p.deck) - 1
	c := p.deck[last]
	p.deck = p.deck[:last]
	return c
}

// Fill replaces each placeholder in text with its own shortcode.
// With an empty pool the placeholders are removed.
func (p *Pool) Fill(text string) string {
	ph := p.Placeholder()
	if !strings.Contains(text, ph) {
		return text
	}
	if p == nil || len(p.codes) == 0 {
		return strings.ReplaceAll(text, ph, "")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	for {
		i := strings.Index(text, ph)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:i])
		b.WriteString(":" + p.nextLocked() + ":")
		text = text[i+len(ph):]
	}
}
