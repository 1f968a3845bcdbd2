package respond

import (
	"context"

	"rotabot/internal/notifier"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

// HandleNotification turns follow and unfollow requests in mentions into
// notifier jobs and answers any other mention like a status. Other
// notification types are ignored.
func (p *Processor) HandleNotification(ctx context.Context, n *transport.Notification) error {
	if n == nil || n.Type != "mention" || n.Status == nil {
		return nil
	}
	if self := p.self.Load(); self != nil && n.Account.ID == self.ID {
		return nil
	}
	r := p.rules.Load()
	if r.ignored(n.Account.Acct) {
		return nil
	}
	text := transport.PlainText(n.Status.Content)

	var kind notifier.Kind
	switch {
	case match(r.follow, text):
		kind = notifier.KindFollow
	case match(r.unfollow, text):
		kind = notifier.KindUnfollow
	default:
		_, err := p.HandleStatus(ctx, transport.StreamUser, n.Status)
		return err
	}
	id, err := p.out.Submit(ctx, notifier.Job{Kind: kind, AccountID: n.Account.ID, Source: "respond." + string(kind)})
	if err != nil {
		return err
	}
	p.log.Info("follow change queued", logx.String("kind", string(kind)), logx.String("acct", n.Account.Acct), logx.String("job", id))
	return nil
}
