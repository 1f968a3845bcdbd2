// Package transport defines the social network surface rotabot talks to.
//
// The mastodon subpackage implements Social on top of go-mastodon; the
// telegram subpackage implements Mirror for an operator chat.
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Visibility string

const (
	Public   Visibility = "public"
	Unlisted Visibility = "unlisted"
	Private  Visibility = "private"
	Direct   Visibility = "direct"
)

// ParseVisibility maps "" to Public.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return Public, nil
	case Public, Unlisted, Private, Direct:
		return v, nil
	default:
		return "", fmt.Errorf("transport: unknown visibility %q", s)
	}
}

type Account struct {
	ID       string
	Acct     string // "name" for local accounts, "name@host" otherwise
	Username string
	Bot      bool
}

// Local reports whether the account lives on the bot's own instance.
func (a Account) Local() bool { return a.Acct != "" && !strings.Contains(a.Acct, "@") }

type Status struct {
	ID          string
	URL         string
	Content     string // HTML as delivered
	SpoilerText string
	Visibility  Visibility
	InReplyToID string
	Reblog      bool
	Account     Account
	Mentions    []Account
	CreatedAt   time.Time
}

// MentionsAcct reports whether acct is among the status mentions.
func (s *Status) MentionsAcct(acct string) bool {
	for _, m := range s.Mentions {
		if m.Acct == acct {
			return true
		}
	}
	return false
}

type Notification struct {
	ID      string
	Type    string // mention, follow, favourite, ...
	Account Account
	Status  *Status
}

type StreamKind string

const (
	StreamUser  StreamKind = "user"
	StreamLocal StreamKind = "local"
)

// Event is one item read from a stream.
type Event struct {
	Stream       StreamKind
	Status       *Status
	Notification *Notification
}

type Poll struct {
	Options   []string
	ExpiresIn time.Duration
}

// Post is an outbound status.
type Post struct {
	Text        string
	Visibility  Visibility
	InReplyToID string
	Poll        *Poll
}

// WeeklyActivity is one week of instance statistics.
type WeeklyActivity struct {
	Week          time.Time
	Statuses      int64
	Logins        int64
	Registrations int64
}

type Poster interface {
	PostStatus(ctx context.Context, p Post) (id string, err error)
}

type Follower interface {
	Follow(ctx context.Context, accountID string) error
	Unfollow(ctx context.Context, accountID string) error
}

// Streamer pushes events into out until ctx ends or the connection fails.
type Streamer interface {
	Stream(ctx context.Context, kind StreamKind, out chan<- Event) error
}

type Social interface {
	Poster
	Follower
	Streamer
	CurrentAccount(ctx context.Context) (Account, error)
	WeeklyActivity(ctx context.Context) ([]WeeklyActivity, error)
}

// Mirror copies announcements somewhere else, e.g. an operator chat.
type Mirror interface {
	Mirror(ctx context.Context, text string) error
}
