// Package mastodon implements transport.Social with go-mastodon.
package mastodon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gomasto "github.com/mattn/go-mastodon"

	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

type Config struct {
	Server       string
	ClientID     string
	ClientSecret string
	AccessToken  string
	UserAgent    string
	// RequestTimeout bounds REST calls; streams are not affected.
	RequestTimeout time.Duration
}

// api is the subset of *gomasto.Client the adapter uses.
type api interface {
	PostStatus(ctx context.Context, toot *gomasto.Toot) (*gomasto.Status, error)
	AccountFollow(ctx context.Context, id gomasto.ID) (*gomasto.Relationship, error)
	AccountUnfollow(ctx context.Context, id gomasto.ID) (*gomasto.Relationship, error)
	GetAccountCurrentUser(ctx context.Context) (*gomasto.Account, error)
	GetInstanceActivity(ctx context.Context) ([]*gomasto.WeeklyActivity, error)
	StreamingUser(ctx context.Context) (chan gomasto.Event, error)
	StreamingPublic(ctx context.Context, isLocal bool) (chan gomasto.Event, error)
}

type Client struct {
	api     api
	log     logx.Logger
	timeout time.Duration
}

var _ transport.Social = (*Client)(nil)

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Server) == "" || strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("mastodon: server and access token are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := gomasto.NewClient(&gomasto.Config{
		Server:       cfg.Server,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccessToken:  cfg.AccessToken,
	})
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		c.UserAgent = ua
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{api: c, log: log, timeout: timeout}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) PostStatus(ctx context.Context, p transport.Post) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	st, err := c.api.PostStatus(ctx, toToot(p))
	if err != nil {
		return "", fmt.Errorf("mastodon: post status: %w", err)
	}
	return string(st.ID), nil
}

func (c *Client) Follow(ctx context.Context, accountID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if _, err := c.api.AccountFollow(ctx, gomasto.ID(accountID)); err != nil {
		return fmt.Errorf("mastodon: follow %s: %w", accountID, err)
	}
	return nil
}

func (c *Client) Unfollow(ctx context.Context, accountID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if _, err := c.api.AccountUnfollow(ctx, gomasto.ID(accountID)); err != nil {
		return fmt.Errorf("mastodon: unfollow %s: %w", accountID, err)
	}
	return nil
}

func (c *Client) CurrentAccount(ctx context.Context) (transport.Account, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	a, err := c.api.GetAccountCurrentUser(ctx)
	if err != nil {
		return transport.Account{}, fmt.Errorf("mastodon: current account: %w", err)
	}
	return toAccount(*a), nil
}

// WeeklyActivity returns the instance activity, oldest week first.
func (c *Client) WeeklyActivity(ctx context.Context) ([]transport.WeeklyActivity, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	weeks, err := c.api.GetInstanceActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("mastodon: instance activity: %w", err)
	}
	out := make([]transport.WeeklyActivity, 0, len(weeks))
	for _, w := range weeks {
		if w == nil {
			continue
		}
		out = append(out, transport.WeeklyActivity{
			Week:          time.Time(w.Week),
			Statuses:      int64(w.Statuses),
			Logins:        int64(w.Logins),
			Registrations: int64(w.Registrations),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week.Before(out[j].Week) })
	return out, nil
}

// Stream forwards events until ctx ends. A stream error or a closed channel
// is returned so the caller can reconnect with backoff.
func (c *Client) Stream(ctx context.Context, kind transport.StreamKind, out chan<- transport.Event) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		in  chan gomasto.Event
		err error
	)
	switch kind {
	case transport.StreamUser:
		in, err = c.api.StreamingUser(sctx)
	case transport.StreamLocal:
		in, err = c.api.StreamingPublic(sctx, true)
	default:
		return fmt.Errorf("mastodon: unknown stream %q", kind)
	}
	if err != nil {
		return fmt.Errorf("mastodon: open %s stream: %w", kind, err)
	}
	c.log.Info("stream connected", logx.String("stream", string(kind)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("mastodon: %s stream closed", kind)
			}
			if e, isErr := ev.(*gomasto.ErrorEvent); isErr {
				return fmt.Errorf("mastodon: %s stream: %s", kind, e.Error())
			}
			te, ok := toEvent(kind, ev)
			if !ok {
				continue
			}
			select {
			case out <- te:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func toEvent(kind transport.StreamKind, ev gomasto.Event) (transport.Event, bool) {
	switch e := ev.(type) {
	case *gomasto.UpdateEvent:
		if e.Status == nil {
			return transport.Event{}, false
		}
		return transport.Event{Stream: kind, Status: toStatus(e.Status)}, true
	case *gomasto.NotificationEvent:
		if e.Notification == nil {
			return transport.Event{}, false
		}
		n := e.Notification
		tn := &transport.Notification{ID: string(n.ID), Type: n.Type, Account: toAccount(n.Account)}
		if n.Status != nil {
			tn.Status = toStatus(n.Status)
		}
		return transport.Event{Stream: kind, Notification: tn}, true
	default:
		return transport.Event{}, false
	}
}

func toToot(p transport.Post) *gomasto.Toot {
	vis := p.Visibility
	if vis == "" {
		vis = transport.Public
	}
	t := &gomasto.Toot{
		Status:      p.Text,
		Visibility:  string(vis),
		InReplyToID: gomasto.ID(p.InReplyToID),
	}
	if p.Poll != nil && len(p.Poll.Options) > 0 {
		expires := p.Poll.ExpiresIn
		if expires <= 0 {
			expires = 5 * time.Minute
		}
		t.Poll = &gomasto.TootPoll{
			Options:          append([]string(nil), p.Poll.Options...),
			ExpiresInSeconds: int64(expires / time.Second),
		}
	}
	return t
}

func toAccount(a gomasto.Account) transport.Account {
	return transport.Account{ID: string(a.ID), Acct: a.Acct, Username: a.Username, Bot: a.Bot}
}

func toStatus(s *gomasto.Status) *transport.Status {
	out := &transport.Status{
		ID:          string(s.ID),
		URL:         s.URL,
		Content:     s.Content,
		SpoilerText: s.SpoilerText,
		Visibility:  transport.Visibility(s.Visibility),
		Reblog:      s.Reblog != nil,
		Account:     toAccount(s.Account),
		CreatedAt:   s.CreatedAt,
	}
	if s.InReplyToID != nil {
		out.InReplyToID = fmt.Sprint(s.InReplyToID)
	}
	for _, m := range s.Mentions {
		out.Mentions = append(out.Mentions, transport.Account{ID: string(m.ID), Acct: m.Acct, Username: m.Username})
	}
	return out
}
