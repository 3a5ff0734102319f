//go:build !darwin && !linux

package power

import (
	"context"

	"github.com/charmbracelet/log"
)

type unsupportedBackend struct{}

func newBackend(Reason, *log.Logger) Backend {
	return unsupportedBackend{}
}

func (unsupportedBackend) Acquire(context.Context) (Assertion, error) {
	return nil, ErrUnsupported
}
