package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "time/tzdata"

	"rotabot/internal/app"
	logx "rotabot/pkg/logx"
)

const stopTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "rotabot",
		Short:         "Mastodon bot announcing game content rotations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./config.json", "path to config json")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Connect to Mastodon and run until interrupted",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), cfgPath)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Validate the config, catalog, features and credentials offline",
			RunE: func(cmd *cobra.Command, _ []string) error {
				r, err := app.Check(cfgPath)
				if err != nil {
					logx.NewConsole("info").Error("config check failed", logx.Err(err))
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "monsters:   %d\n", r.Monsters)
				fmt.Fprintf(out, "features:   %d (%d announcers, %d responders)\n", len(r.Features), r.Announcers, r.Responders)
				for _, f := range r.Features {
					fmt.Fprintf(out, "  - %s\n", f)
				}
				fmt.Fprintln(out, "schedules:")
				for _, s := range r.Schedules {
					fmt.Fprintf(out, "  - %s\n", s)
				}
				fmt.Fprintf(out, "credentials: %t\n", r.Credentials)
				return nil
			},
		},
		newPreviewCmd(&cfgPath),
	)
	// Bare invocation runs the bot.
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), cfgPath)
	}
	return root
}

func newPreviewCmd(cfgPath *string) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render every announcement for an instant without posting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			when := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				when = t
			}
			res, err := app.Preview(*cfgPath, when)
			if err != nil {
				logx.NewConsole("info").Error("preview failed", logx.Err(err))
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range res {
				switch {
				case r.Err != nil:
					fmt.Fprintf(out, "[%s] error: %v\n\n", r.Feature, r.Err)
				case !r.OK:
					fmt.Fprintf(out, "[%s] (silent)\n\n", r.Feature)
				default:
					fmt.Fprintf(out, "[%s]\n%s\n\n", r.Feature, r.Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "instant to render (RFC3339, default now)")
	return cmd
}

func run(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boot := logx.NewConsole("info")
	a, err := app.New(cfgPath)
	if err != nil {
		boot.Error("bootstrap failed", logx.Err(err))
		return err
	}
	if err := a.Start(ctx); err != nil {
		boot.Error("start failed", logx.Err(err))
		sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
		defer scancel()
		_ = a.Stop(sctx, app.StopFatalError)
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if ctx.Err() == nil {
			reason = app.StopFatalError
		}
	}

	sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
	defer scancel()
	if err := a.Stop(sctx, reason); err != nil {
		boot.Warn("stop incomplete", logx.Err(err))
	}
	if reason == app.StopFatalError {
		if err := a.Err(); err != nil {
			return err
		}
		return fmt.Errorf("stopped unexpectedly")
	}
	return nil
}
