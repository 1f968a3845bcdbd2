// Package respond answers statuses that reach the bot through its streams
// and acts on follow and unfollow requests.
package respond

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"rotabot/internal/emoji"
	"rotabot/internal/eventbus"
	"rotabot/internal/feature"
	"rotabot/internal/notifier"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

// Submitter queues outbound jobs; *notifier.Service implements it.
type Submitter interface {
	Submit(ctx context.Context, j notifier.Job) (string, error)
}

// ResponderSource returns the responders active right now.
type ResponderSource func() []feature.Responder

// Rule names, used as job sources and in reply events.
const (
	RuleRequestAll  = "request_all"
	RuleHealthcheck = "healthcheck"
	RuleCanI        = "can_i"
	RuleCanIPoll    = "can_i_poll"
)

type Options struct {
	Config     Config
	Responders ResponderSource
	Out        Submitter
	Emoji      *emoji.Pool  // optional
	Bus        eventbus.Bus // optional
	Log        logx.Logger
	// Clock defaults to time.Now; the result is used as is, so callers pick
	// the location.
	Clock func() time.Time
	// SkipLocalPublicOnHome drops local public statuses on the user stream
	// because the local stream delivers them too.
	SkipLocalPublicOnHome bool
}

type Processor struct {
	rules      atomic.Pointer[rules]
	self       atomic.Pointer[transport.Account]
	responders ResponderSource
	out        Submitter
	emoji      *emoji.Pool
	bus        eventbus.Bus
	log        logx.Logger
	clock      func() time.Time
	skipHome   atomic.Bool
}

func New(opts Options) (*Processor, error) {
	r, err := compile(opts.Config)
	if err != nil {
		return nil, err
	}
	p := &Processor{
		responders: opts.Responders,
		out:        opts.Out,
		emoji:      opts.Emoji,
		bus:        opts.Bus,
		log:        opts.Log,
		clock:      opts.Clock,
	}
	if p.log.IsZero() {
		p.log = logx.Nop()
	}
	p.log = p.log.With(logx.String("comp", "respond"))
	if p.clock == nil {
		p.clock = time.Now
	}
	p.rules.Store(r)
	p.skipHome.Store(opts.SkipLocalPublicOnHome)
	return p, nil
}

// Apply swaps in a new rule set. On error the previous rules stay active.
func (p *Processor) Apply(cfg Config, skipLocalPublicOnHome bool) error {
	r, err := compile(cfg)
	if err != nil {
		return err
	}
	p.rules.Store(r)
	p.skipHome.Store(skipLocalPublicOnHome)
	return nil
}

// SetSelf records the bot account so its own statuses are ignored.
func (p *Processor) SetSelf(a transport.Account) { p.self.Store(&a) }

// Handle dispatches one stream event.
func (p *Processor) Handle(ctx context.Context, ev transport.Event) error {
	switch {
	case ev.Notification != nil:
		return p.HandleNotification(ctx, ev.Notification)
	case ev.Status != nil:
		// Mentions on the user stream also arrive as notifications.
		if self := p.self.Load(); self != nil && ev.Stream == transport.StreamUser && ev.Status.MentionsAcct(self.Acct) {
			return nil
		}
		_, err := p.HandleStatus(ctx, ev.Stream, ev.Status)
		return err
	}
	return nil
}

// Consume handles events from in until ctx ends or in is closed. Handler
// errors are logged and do not stop the loop.
func (p *Processor) Consume(ctx context.Context, in <-chan transport.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			if err := p.Handle(ctx, ev); err != nil {
				p.log.Warn("event not handled", logx.String("stream", string(ev.Stream)), logx.Err(err))
			}
		}
	}
}

// HandleStatus answers st if a rule or responder matches and returns the
// queued text ("" when the status was skipped or nothing matched).
func (p *Processor) HandleStatus(ctx context.Context, stream transport.StreamKind, st *transport.Status) (string, error) {
	if st == nil || st.Reblog {
		return "", nil
	}
	r := p.rules.Load()
	acct := st.Account.Acct
	if self := p.self.Load(); self != nil && st.Account.ID == self.ID {
		return "", nil
	}
	if r.ignored(acct) {
		p.log.Debug("ignored account", logx.String("acct", acct), logx.String("status", st.ID))
		return "", nil
	}
	if stream == transport.StreamUser && p.skipHome.Load() && st.Account.Local() && st.Visibility == transport.Public {
		return "", nil
	}
	text := transport.PlainText(st.Content)
	if text == "" {
		return "", nil
	}

	post, rule, ok := p.reply(r, st, text)
	if !ok {
		return "", nil
	}
	post.Text = p.emoji.Fill(post.Text)

	id, err := p.out.Submit(ctx, notifier.Status("respond."+rule, post))
	if err != nil {
		return "", err
	}
	p.log.Info("reply queued", logx.String("acct", acct), logx.String("rule", rule), logx.String("job", id))
	eventbus.Emit(p.bus, eventbus.ReplySent, eventbus.ReplyEvent{Acct: acct, StatusID: st.ID, Rule: rule, JobID: id})
	return post.Text, nil
}

func (p *Processor) reply(r *rules, st *transport.Status, text string) (transport.Post, string, bool) {
	now := p.clock()
	post := transport.Post{Visibility: st.Visibility, InReplyToID: st.ID}
	mention := true
	var rule, body string

	switch {
	case match(r.requestAll, text):
		rule = RuleRequestAll
		var parts []string
		for _, rs := range p.current() {
			out, ok, err := rs.Respond(now, text)
			if err != nil {
				p.log.Warn("responder failed", logx.String("feature", rs.Name()), logx.Err(err))
				continue
			}
			if ok && out != "" {
				parts = append(parts, out)
			}
		}
		body = strings.Join(parts, "\n")
		if body == "" {
			body = r.fallback
		}
		// A local public status is already visible on the local timeline.
		if st.Account.Local() && st.Visibility == transport.Public {
			post.InReplyToID = ""
		}
	case match(r.health, text) && r.healthReply != "":
		rule, body = RuleHealthcheck, r.healthReply
	case match(r.canI, text):
		if now.Second()%2 == 0 {
			rule = RuleCanIPoll
			body = r.pollReply
			if body == "" {
				body = stripMentions(text)
			}
			mention = false
			post = transport.Post{
				Visibility: transport.Public,
				Poll:       &transport.Poll{Options: append([]string(nil), r.pollOptions...), ExpiresIn: r.pollExpires},
			}
		} else {
			rule, body = RuleCanI, r.canIReply
		}
	default:
		for _, rs := range p.current() {
			out, ok, err := rs.Respond(now, text)
			if err != nil {
				p.log.Warn("responder failed", logx.String("feature", rs.Name()), logx.Err(err))
				continue
			}
			if ok && out != "" {
				rule, body = rs.Name(), out
				break
			}
		}
	}
	if body == "" {
		return transport.Post{}, "", false
	}
	if mention {
		body = "@" + st.Account.Acct + " " + body
	}
	post.Text = body
	return post, rule, true
}

func (p *Processor) current() []feature.Responder {
	if p.responders == nil {
		return nil
	}
	return p.responders()
}

var mentionRE = regexp.MustCompile(`@[\w.\-]+(?:@[\w.\-]+)?`)

func stripMentions(s string) string {
	return strings.TrimSpace(mentionRE.ReplaceAllString(s, ""))
}
