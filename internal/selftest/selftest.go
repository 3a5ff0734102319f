// Package selftest runs a quick end-to-end check of the probe, the decision
// and the sleep inhibitor without leaving an assertion behind.
package selftest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ubunatic/clamshell/internal/clamshell"
	"github.com/ubunatic/clamshell/internal/power"
	"github.com/ubunatic/clamshell/internal/probe"
)

// ErrFailed wraps every selftest failure.
var ErrFailed = errors.New("selftest failed")

// Controller is the part of power.Controller the selftest exercises.
type Controller interface {
	Enable(ctx context.Context) (*power.Handle, error)
	Disable(h *power.Handle) error
	Active() bool
}

// Report summarizes a selftest run.
type Report struct {
	Sample    clamshell.Sample
	Mode      clamshell.Mode
	Handle    string
	WasActive bool
	Duration  time.Duration
}

// Run samples, decides, then enables and disables the inhibitor. The
// controller ends in the state it started in.
func Run(ctx context.Context, p probe.Probe, c Controller, logger *log.Logger) (rep Report, err error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("selftest")

	start := time.Now()
	defer func() { rep.Duration = time.Since(start) }()

	rep.WasActive = c.Active()

	sample, err := p.Sample(ctx)
	if err != nil {
		return rep, fmt.Errorf("%w: probe: %w", ErrFailed, err)
	}
	rep.Sample = sample
	rep.Mode = clamshell.Decide(sample.Lid, sample.Display)
	logger.Debug("sampled", "lid", sample.Lid, "display", sample.Display, "mode", rep.Mode)

	h, err := c.Enable(ctx)
	if err != nil {
		return rep, fmt.Errorf("%w: enable: %w", ErrFailed, err)
	}
	rep.Handle = h.String()

	// Only release what this run acquired.
	acquired := !rep.WasActive
	defer func() {
		if acquired && c.Active() {
			if rerr := c.Disable(h); rerr != nil {
				err = errors.Join(err, fmt.Errorf("%w: cleanup: %w", ErrFailed, rerr))
			}
		}
	}()

	if !c.Active() {
		return rep, fmt.Errorf("%w: inhibitor not active after enable", ErrFailed)
	}

	if acquired {
		if err := c.Disable(h); err != nil {
			return rep, fmt.Errorf("%w: disable: %w", ErrFailed, err)
		}
	}
	if c.Active() != rep.WasActive {
		return rep, fmt.Errorf("%w: inhibitor state not restored", ErrFailed)
	}

	logger.Debug("inhibitor enable/disable ok", "handle", rep.Handle)
	return rep, nil
}
