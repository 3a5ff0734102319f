//go:build darwin

package power

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"
)

type darwinBackend struct {
	reason Reason
	logger *log.Logger
}

func newBackend(reason Reason, logger *log.Logger) Backend {
	return &darwinBackend{reason: reason, logger: logger}
}

func (d *darwinBackend) Acquire(ctx context.Context) (Assertion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := exec.LookPath("caffeinate")
	if err != nil {
		return nil, fmt.Errorf("caffeinate not found: %w", err)
	}

	// -i: prevent idle sleep
	// -s: prevent system sleep (AC power)
	// -w <pid>: exit automatically when the daemon process dies
	// The helper must outlive ctx, so it is not bound to it.
	cmd := exec.Command(path, "-is", "-w", strconv.Itoa(os.Getpid()))
	d.logger.Debug("starting caffeinate", "path", path, "why", d.reason.Why)
	return startProcessAssertion("caffeinate", cmd)
}
