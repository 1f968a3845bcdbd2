// Package systemd speaks the sd_notify protocol: readiness, stopping and
// watchdog keep-alives. Outside systemd (no NOTIFY_SOCKET) every call is a
// no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "rotabot/pkg/logx"
)

type Notifier struct {
	log      logx.Logger
	notify   func(unsetEnvironment bool, state string) (bool, error)
	interval func(unsetEnvironment bool) (time.Duration, error)
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		log:      log.With(logx.String("comp", "systemd")),
		notify:   daemon.SdNotify,
		interval: daemon.SdWatchdogEnabled,
	}
}

func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

func (n *Notifier) Reloading() { n.send(daemon.SdNotifyReloading) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(s string) { n.send("STATUS=" + s) }

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify", logx.String("state", state))
	}
}

// Watchdog pings systemd at half the configured WatchdogSec while healthy
// reports true. It returns at once when the watchdog is not enabled.
func (n *Notifier) Watchdog(ctx context.Context, healthy func() bool) error {
	every, err := n.interval(false)
	if err != nil {
		return err
	}
	if every <= 0 {
		return nil
	}
	every /= 2
	n.log.Info("watchdog enabled", logx.Duration("every", every))

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy != nil && !healthy() {
				n.log.Warn("unhealthy, skipping watchdog ping")
				continue
			}
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
