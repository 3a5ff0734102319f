//go:build !darwin && !linux

package probe

import (
	"context"

	"github.com/ubunatic/clamshell/internal/clamshell"
)

type unsupportedProbe struct{}

func newPlatformProbe(Options) Probe {
	return unsupportedProbe{}
}

func (unsupportedProbe) Sample(context.Context) (clamshell.Sample, error) {
	return clamshell.Sample{}, probeErr("platform", ErrUnsupported)
}
