package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ubunatic/clamshell/internal/config"
	"github.com/ubunatic/clamshell/internal/lock"
	"github.com/ubunatic/clamshell/internal/monitor"
	"github.com/ubunatic/clamshell/internal/power"
)

type runOptions struct {
	interval         time.Duration
	failureThreshold int
	noWatch          bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.interval, "interval", 0, "Polling interval (default 2s)")
	cmd.Flags().IntVar(&o.failureThreshold, "failure-threshold", 0, "Consecutive failed cycles before exiting with status 3; 0 never exits (default 10)")
	cmd.Flags().BoolVar(&o.noWatch, "no-watch", false, "Disable lid/display change notifications and rely on polling only")
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clamshell monitor in the foreground",
		Long: `Watches lid and external display state and holds a sleep inhibitor while
the lid is closed and an external display is attached. This is the entry point
used by the installed background service. Stops on SIGINT/SIGTERM and releases
the inhibitor before exiting.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMonitor(cmd, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func (a *app) runMonitor(cmd *cobra.Command, opts runOptions) error {
	overrides := config.Overrides{PollInterval: opts.interval}
	if cmd.Flags().Changed("failure-threshold") {
		overrides.FailureThreshold = &opts.failureThreshold
	}
	if err := a.setup(overrides); err != nil {
		return err
	}

	lk, err := lock.Acquire(a.cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lk.Release(); err != nil {
			a.logger.Warn("failed to release lock", "path", lk.Path(), "err", err)
		}
	}()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := power.NewController(a.deps.newBackend(a.logger), a.logger, a.cfg.CallTimeout)
	loop := monitor.New(a.deps.newProbe(a.cfg, a.logger), ctrl, monitor.Options{
		Interval:         a.cfg.PollInterval,
		MaxBackoff:       a.cfg.MaxBackoff,
		FailureThreshold: a.cfg.FailureThreshold,
		Watch:            !opts.noWatch,
		Logger:           a.logger,
	})

	a.logger.Info("clamshell monitor starting", "version", version, "pid", os.Getpid(), "lock", lk.Path())
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
