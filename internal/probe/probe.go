// Package probe samples lid and external-display state from the operating
// system.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ubunatic/clamshell/internal/clamshell"
)

var (
	// ErrProbe marks every failure to read lid or display state.
	ErrProbe = errors.New("state probe")

	// ErrUnsupported is returned on platforms without a known state source.
	ErrUnsupported = errors.New("lid/display probing is not supported on this platform")
)

// Error describes a failed OS query.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state probe: %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrProbe, e.Err}
}

func probeErr(source string, err error) error {
	return &Error{Source: source, Err: err}
}

// Probe reads the current lid and display state. Implementations are side
// effect free and cheap enough to call several times per second.
type Probe interface {
	Sample(ctx context.Context) (clamshell.Sample, error)
}

// Watcher is implemented by probes that can signal state changes. Each value
// on the returned channel is a hint to resample; hints are coalesced.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Options configures the platform probe.
type Options struct {
	// Timeout bounds each OS query. Zero means no deadline.
	Timeout time.Duration
	Logger  *log.Logger
}

// New returns the probe for the running platform.
// See probe_darwin.go, probe_linux.go, probe_other.go.
func New(opts Options) Probe {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	opts.Logger = opts.Logger.WithPrefix("probe")
	return newPlatformProbe(opts)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// notifier coalesces change hints into a 1-buffered channel.
type notifier chan struct{}

func newNotifier() notifier {
	return make(notifier, 1)
}

func (n notifier) notify() {
	select {
	case n <- struct{}{}:
	default:
	}
}
