package app

import (
	"context"
	"slices"
	"strings"

	"rotabot/internal/config"
	"rotabot/internal/task/scheduler"
	logx "rotabot/pkg/logx"
)

// restartOnly lists sections whose changes need a process restart.
var restartOnly = []string{"mastodon", "storage", "telegram_mirror"}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for drained := false; !drained; {
				select {
				case newer, ok := <-sub:
					if !ok {
						return
					}
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			if newCfg == nil {
				continue
			}
			a.apply(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// apply pushes a validated config into the running components. A component
// that rejects its part keeps its previous settings.
func (a *App) apply(ctx context.Context, oldCfg, newCfg *config.Config) {
	a.sd.Reloading()
	defer a.sd.Ready()

	sections, attrs, changedFeatures := config.SummarizeConfigChange(oldCfg, newCfg)
	for _, s := range sections {
		if slices.Contains(restartOnly, s) {
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLogConfig(newCfg))

	c, err := buildContent(newCfg)
	if err != nil {
		a.log.Warn("content rebuild failed; keeping previous features", logx.Err(err))
	} else {
		a.content.Store(&c)
		a.sched.Apply(scheduler.Config{Location: c.loc})
		if len(changedFeatures) > 0 {
			a.log.Info("features rebuilt", logx.Strs("changed", changedFeatures), logx.Int("total", len(c.features.All())))
		}
	}

	if rcfg, err := mapRespondConfig(newCfg); err != nil {
		a.log.Warn("invalid responder config; keeping previous", logx.Err(err))
	} else if err := a.resp.Apply(rcfg, newCfg.Mastodon.ListenLocal); err != nil {
		a.log.Warn("invalid responder config; keeping previous", logx.Err(err))
	}

	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	if err := a.schedule(newCfg); err != nil {
		a.log.Warn("schedule update failed", logx.Err(err))
	}

	if opsCfg, err := mapOpsConfig(newCfg); err != nil {
		a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
	} else {
		a.ops.Reconfigure(ctx, opsCfg)
	}

	if len(sections) == 0 {
		a.log.Info("config reloaded (no logged changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
