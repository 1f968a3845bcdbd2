package respond

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	defaultFallback    = "？"
	defaultPollExpires = 5 * time.Minute
)

// Config is the responder section with durations already parsed.
type Config struct {
	IgnoreAccounts     []string
	RequestAll         string
	RequestAllFallback string

	HealthcheckPattern  string
	HealthcheckResponse string

	CanIPattern     string
	CanIReply       string
	CanIPollReply   string
	CanIPollOptions []string
	CanIPollExpires time.Duration

	Follow   string
	Unfollow string
}

// rules is Config compiled. A nil pattern never matches.
type rules struct {
	ignore      []*regexp.Regexp
	requestAll  *regexp.Regexp
	fallback    string
	health      *regexp.Regexp
	healthReply string
	canI        *regexp.Regexp
	canIReply   string
	pollReply   string
	pollOptions []string
	pollExpires time.Duration
	follow      *regexp.Regexp
	unfollow    *regexp.Regexp
}

func compile(cfg Config) (*rules, error) {
	r := &rules{
		fallback:    cfg.RequestAllFallback,
		healthReply: cfg.HealthcheckResponse,
		canIReply:   cfg.CanIReply,
		pollReply:   cfg.CanIPollReply,
		pollOptions: cfg.CanIPollOptions,
		pollExpires: cfg.CanIPollExpires,
	}
	if r.fallback == "" {
		r.fallback = defaultFallback
	}
	if len(r.pollOptions) == 0 {
		r.pollOptions = []string{"はい", "いいえ"}
	}
	if r.pollExpires <= 0 {
		r.pollExpires = defaultPollExpires
	}

	for _, p := range []struct {
		name string
		src  string
		dst  **regexp.Regexp
	}{
		{"request_all", cfg.RequestAll, &r.requestAll},
		{"healthcheck.pattern", cfg.HealthcheckPattern, &r.health},
		{"can_i.pattern", cfg.CanIPattern, &r.canI},
		{"follow", cfg.Follow, &r.follow},
		{"unfollow", cfg.Unfollow, &r.unfollow},
	} {
		re, err := optional(p.src)
		if err != nil {
			return nil, fmt.Errorf("responder.%s: %w", p.name, err)
		}
		*p.dst = re
	}
	for i, p := range cfg.IgnoreAccounts {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("responder.ignore_accounts[%d]: %w", i, err)
		}
		r.ignore = append(r.ignore, re)
	}
	return r, nil
}

func optional(p string) (*regexp.Regexp, error) {
	if strings.TrimSpace(p) == "" {
		return nil, nil
	}
	return regexp.Compile(p)
}

func match(re *regexp.Regexp, s string) bool { return re != nil && re.MatchString(s) }

func (r *rules) ignored(acct string) bool {
	for _, re := range r.ignore {
		if re.MatchString(acct) {
			return true
		}
	}
	return false
}
