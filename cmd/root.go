package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ubunatic/clamshell/internal/config"
	"github.com/ubunatic/clamshell/internal/logging"
	"github.com/ubunatic/clamshell/internal/monitor"
	"github.com/ubunatic/clamshell/internal/power"
	"github.com/ubunatic/clamshell/internal/probe"
	"github.com/ubunatic/clamshell/internal/service"
	"github.com/ubunatic/clamshell/internal/ui"
)

// Process exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsage      = 2
	exitPersistent = 3
)

// usageError marks bad invocations; they exit with exitUsage.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// deps are the OS-facing collaborators, replaced in tests.
type deps struct {
	newProbe   func(cfg *config.Config, logger *log.Logger) probe.Probe
	newBackend func(logger *log.Logger) power.Backend
	newService func(cfg *config.Config, logger *log.Logger) (service.Manager, error)
	executable func() (string, error)
}

func defaultDeps() deps {
	return deps{
		newProbe: func(cfg *config.Config, logger *log.Logger) probe.Probe {
			return probe.New(probe.Options{Timeout: cfg.CallTimeout, Logger: logger})
		},
		newBackend: func(logger *log.Logger) power.Backend {
			return power.NewBackend(power.DefaultReason, logger)
		},
		newService: func(cfg *config.Config, logger *log.Logger) (service.Manager, error) {
			return service.New(service.Config{Label: cfg.ServiceLabel, Logger: logger})
		},
		executable: os.Executable,
	}
}

// app carries global flags and the lazily loaded config and logger.
type app struct {
	deps   deps
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *log.Logger
}

func (a *app) setup(o config.Overrides) error {
	o.ConfigPath = a.configPath
	o.LogLevel = a.logLevel
	o.LogFormat = a.logFormat

	cfg, err := config.Load(o)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: a.stderr})
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// absConfigPath returns the --config value as an absolute path, or "".
func (a *app) absConfigPath() (string, error) {
	if a.configPath == "" {
		return "", nil
	}
	return filepath.Abs(a.configPath)
}

func newRootCmd(a *app) *cobra.Command {
	var runOpts runOptions

	rootCmd := &cobra.Command{
		Use:   "clamshell",
		Short: "Keep your laptop awake in clamshell mode",
		Long: `clamshell keeps a laptop from sleeping while its lid is closed and an
external display is attached. Without a subcommand it runs the monitor in the
foreground; "clamshell install" registers it as a background service that
starts at login and restarts on failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMonitor(cmd, runOpts)
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file path (default ~/.clamshell/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text, json, logfmt")
	runOpts.bind(rootCmd)

	rootCmd.AddCommand(
		newRunCmd(a),
		newInstallCmd(a),
		newUninstallCmd(a),
		newSelftestCmd(a),
		newStatusCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError{fmt.Errorf("%q accepts no arguments, got %q", cmd.CommandPath(), args)}
	}
	return nil
}

func exitCode(err error) int {
	var ue usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue):
		return exitUsage
	case errors.Is(err, monitor.ErrPersistentFailure):
		return exitPersistent
	default:
		return exitFailure
	}
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, a *app, args []string) int {
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	err := rootCmd.ExecuteContext(ctx)
	code := exitCode(err)
	switch code {
	case exitOK:
	case exitUsage:
		ui.Error("%v", err)
		ui.Info("Run 'clamshell --help' for usage.")
	default:
		if !errors.Is(err, context.Canceled) {
			ui.Error("%v", err)
		}
	}
	return code
}

func Execute() {
	a := &app{deps: defaultDeps(), stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(execute(context.Background(), a, os.Args[1:]))
}
