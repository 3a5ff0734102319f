//go:build darwin

package probe

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/ubunatic/clamshell/internal/clamshell"
)

type darwinProbe struct {
	run    commandRunner
	opts   Options
	logger *log.Logger
}

func newPlatformProbe(opts Options) Probe {
	return &darwinProbe{run: runCommand, opts: opts, logger: opts.Logger}
}

func (p *darwinProbe) Sample(ctx context.Context) (clamshell.Sample, error) {
	ctx, cancel := withTimeout(ctx, p.opts.Timeout)
	defer cancel()

	out, err := p.run(ctx, "ioreg", "-r", "-k", "AppleClamshellState", "-d", "1")
	if err != nil {
		return clamshell.Sample{}, probeErr("ioreg", err)
	}
	lid, err := parseClamshellState(out)
	if err != nil {
		return clamshell.Sample{}, probeErr("ioreg", err)
	}

	out, err = p.run(ctx, "system_profiler", "SPDisplaysDataType", "-json")
	if err != nil {
		return clamshell.Sample{}, probeErr("system_profiler", err)
	}
	n, err := countExternalDisplays(out)
	if err != nil {
		return clamshell.Sample{}, probeErr("system_profiler", err)
	}

	return clamshell.Sample{Lid: lid, Display: clamshell.DisplayFromCount(n), ExternalDisplays: n}, nil
}
