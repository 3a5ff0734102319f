package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ubunatic/clamshell/internal/config"
	"github.com/ubunatic/clamshell/internal/service"
	"github.com/ubunatic/clamshell/internal/ui"
)

func newInstallCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register clamshell as a background service and start it",
		Long: `Writes a launchd agent (macOS) or systemd user unit (Linux) that runs
"clamshell run" at login and restarts it when it fails, then starts it.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(config.Overrides{}); err != nil {
				return err
			}

			exe, err := a.deps.executable()
			if err != nil {
				return fmt.Errorf("%w: resolve executable: %w", service.ErrInstall, err)
			}
			runArgs := []string{"run"}
			cfgPath, err := a.absConfigPath()
			if err != nil {
				return fmt.Errorf("%w: %w", service.ErrInstall, err)
			}
			if cfgPath != "" {
				runArgs = append(runArgs, "--config", cfgPath)
			}

			mgr, err := a.deps.newService(a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("%w: %w", service.ErrInstall, err)
			}
			if err := mgr.Install(cmd.Context(), service.Options{Executable: exe, Args: runArgs, Force: force}); err != nil {
				return err
			}

			st, err := mgr.Status(cmd.Context())
			if err != nil {
				a.logger.Warn("unable to read service status", "err", err)
			}
			ui.Success("Installed %s service", mgr.Name())
			ui.KeyValue("Descriptor", st.Path)
			ui.KeyValue("Executable", exe)
			ui.Info("Run 'clamshell uninstall' before removing the package.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing service descriptor")
	return cmd
}

func newUninstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop the background service and remove its registration",
		Long:  `Stops a running clamshell service and removes its descriptor. Succeeds when nothing is installed.`,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(config.Overrides{}); err != nil {
				return err
			}
			mgr, err := a.deps.newService(a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("%w: %w", service.ErrUninstall, err)
			}
			if err := mgr.Uninstall(cmd.Context()); err != nil {
				return err
			}
			ui.Success("Uninstalled %s service", mgr.Name())
			return nil
		},
	}
}
