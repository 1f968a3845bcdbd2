package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "rotabot/internal/runtime/supervisor"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

type Config struct {
	Token       string
	ChatID      int64
	ThreadID    int
	PollTimeout time.Duration
}

// StatusFunc renders the reply to /status.
type StatusFunc func() string

// sender is the part of *tele.Bot used for outbound messages.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot  *tele.Bot
	send sender

	statusMu sync.RWMutex
	status   StatusFunc

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor
}

var _ transport.Mirror = (*Adapter)(nil)
var _ logx.Sender = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b, send: b}
	a.registerHandlers()
	return a, nil
}

// SetStatus installs the /status handler output. Nil disables the command.
func (a *Adapter) SetStatus(fn StatusFunc) {
	a.statusMu.Lock()
	a.status = fn
	a.statusMu.Unlock()
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle("/status", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil || chat.ID != a.cfg.ChatID {
			return nil
		}
		a.statusMu.RLock()
		fn := a.status
		a.statusMu.RUnlock()
		if fn == nil {
			return nil
		}
		return c.Send(fn())
	})
}

// Start runs the long poll loop until ctx ends or Stop is called.
func (a *Adapter) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.running = true
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram"))),
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup

	sup.Go("telebot.stop_on_cancel", func(c context.Context) error {
		<-c.Done()
		a.bot.Stop()
		return nil
	})

	// telebot's Start can return on its own; restart it while the adapter runs.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		if c.Err() != nil {
			return nil
		}
		return errors.New("poller exited")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)
	return nil
}

// Stop never blocks shutdown for longer than a short grace window.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()
	if !wasRunning || sup == nil {
		return nil
	}
	sup.Cancel()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		a.log.Debug("telegram stopped with supervisor error", logx.Err(err))
	}
	return nil
}

// Mirror sends text to the configured chat.
func (a *Adapter) Mirror(ctx context.Context, text string) error {
	return a.sendText(ctx, a.cfg.ChatID, a.cfg.ThreadID, text)
}

// SendLog implements logx.Sender.
func (a *Adapter) SendLog(ctx context.Context, chatID int64, threadID int, text string) error {
	return a.sendText(ctx, chatID, threadID, text)
}

func (a *Adapter) sendText(ctx context.Context, chatID int64, threadID int, text string) error {
	if chatID == 0 {
		return errors.New("telegram: chat id not set")
	}
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		opt := &tele.SendOptions{DisableWebPagePreview: true, ThreadID: threadID}
		if _, err := a.send.Send(chat, chunk, opt); err != nil {
			return err
		}
	}
	return nil
}

const textLimit = 4000

// splitText cuts long messages into chunks, preferring newline boundaries.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// Avoid extremely small chunks.
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
