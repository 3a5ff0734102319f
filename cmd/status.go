package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ubunatic/clamshell/internal/config"
	"github.com/ubunatic/clamshell/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show lid, display and service state",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(config.Overrides{}); err != nil {
				return err
			}
			ui.Banner(version)
			fmt.Fprintln(a.stderr)

			// A failed probe still shows the service state but exits nonzero.
			sample, probeErr := a.deps.newProbe(a.cfg, a.logger).Sample(cmd.Context())
			if probeErr != nil {
				ui.Warn("%v", probeErr)
			} else {
				ui.KeyValue("Lid", sample.Lid.String())
				ui.KeyValue("Display", fmt.Sprintf("%s (%d external)", sample.Display, sample.ExternalDisplays))
				ui.KeyValue("Mode", sample.Mode().String())
			}
			ui.Separator()

			mgr, err := a.deps.newService(a.cfg, a.logger)
			if err != nil {
				return err
			}
			st, err := mgr.Status(cmd.Context())
			if err != nil {
				return err
			}
			ui.KeyValue("Service", mgr.Name())
			ui.KeyValue("Descriptor", ui.Dim(st.Path))
			ui.KeyValue("Installed", fmt.Sprint(st.Installed))
			ui.KeyValue("Running", fmt.Sprint(st.Running))
			return probeErr
		},
	}
}
