package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ubunatic/clamshell/internal/config"
	"github.com/ubunatic/clamshell/internal/power"
	"github.com/ubunatic/clamshell/internal/selftest"
	"github.com/ubunatic/clamshell/internal/ui"
)

func newSelftestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Check lid/display probing and the sleep inhibitor",
		Long: `Reads lid and display state, computes the desired mode and acquires and
releases the sleep inhibitor once. Leaves no assertion behind. Exits 0 on success.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(config.Overrides{}); err != nil {
				return err
			}

			ctrl := power.NewController(a.deps.newBackend(a.logger), a.logger, a.cfg.CallTimeout)
			defer ctrl.Close()

			rep, err := selftest.Run(cmd.Context(), a.deps.newProbe(a.cfg, a.logger), ctrl, a.logger)
			if err != nil {
				return err
			}

			ui.KeyValue("Lid", rep.Sample.Lid.String())
			ui.KeyValue("Display", fmt.Sprintf("%s (%d external)", rep.Sample.Display, rep.Sample.ExternalDisplays))
			ui.KeyValue("Mode", rep.Mode.String())
			ui.KeyValue("Inhibitor", rep.Handle)
			ui.Success("selftest passed in %s", rep.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
