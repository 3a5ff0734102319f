//go:build linux

package probe

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"

	"github.com/ubunatic/clamshell/internal/clamshell"
)

type linuxProbe struct {
	opts     Options
	logger   *log.Logger
	sysRoot  string
	procRoot string

	// systemBus returns the shared system bus connection.
	systemBus func() (*dbus.Conn, error)
}

func newPlatformProbe(opts Options) Probe {
	return &linuxProbe{
		opts:      opts,
		logger:    opts.Logger,
		sysRoot:   "/sys",
		procRoot:  "/proc",
		systemBus: dbus.SystemBus,
	}
}

func (p *linuxProbe) Sample(ctx context.Context) (clamshell.Sample, error) {
	ctx, cancel := withTimeout(ctx, p.opts.Timeout)
	defer cancel()

	lid, err := p.lidState(ctx)
	if err != nil {
		return clamshell.Sample{}, err
	}

	n, err := countExternalConnectors(p.sysRoot)
	if err != nil {
		return clamshell.Sample{}, probeErr("drm", err)
	}

	return clamshell.Sample{Lid: lid, Display: clamshell.DisplayFromCount(n), ExternalDisplays: n}, nil
}

// lidState prefers UPower and falls back to the ACPI button in procfs.
func (p *linuxProbe) lidState(ctx context.Context) (clamshell.LidState, error) {
	conn, err := p.systemBus()
	if err == nil {
		lid, upErr := upowerLidState(ctx, conn)
		if upErr == nil {
			return lid, nil
		}
		err = upErr
	}
	p.logger.Debug("upower lid query failed, falling back to procfs", "err", err)

	lid, procErr := readProcLidState(p.procRoot)
	if procErr != nil {
		return clamshell.LidUnknown, probeErr("lid", procErr)
	}
	return lid, nil
}
