// Package monitor drives the sleep inhibitor from lid and display samples.
package monitor

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

// ErrPersistentFailure is returned by Run when consecutive failed cycles
// reach the configured threshold.
var ErrPersistentFailure = errors.New("persistent monitor failure")

// State of the loop's state machine.
type State int

const (
	Idle State = iota
	Inhibiting
)

func (s State) String() string {
	if s == Inhibiting {
		return "inhibiting"
	}
	return "idle"
}

// Inhibitor is the part of power.Controller the loop drives.
type Inhibitor interface {
	Enable(ctx context.Context) (*power.Handle, error)
	Disable(h *power.Handle) error
}

// Options tunes the loop.
type Options struct {
	Interval   time.Duration
	MaxBackoff time.Duration
	// FailureThreshold is the number of consecutive failed cycles after
	// which Run gives up. Zero never gives up.
	FailureThreshold int
	// Watch enables event wake-ups when the probe implements probe.Watcher.
	Watch  bool
	Logger *log.Logger
}

// Loop owns the inhibitor handle. It is not safe for concurrent use; Run
// and Step must be called from a single goroutine.
type Loop struct {
	probe     probe.Probe
	inhibitor Inhibitor
	opts      Options
	logger    *log.Logger
	backoff   *Backoff

	state    State
	handle   *power.Handle
	failures int
}

// New creates a loop in the Idle state.
func New(p probe.Probe, inhibitor Inhibitor, opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.MaxBackoff < opts.Interval {
		opts.MaxBackoff = opts.Interval
	}
	return &Loop{
		probe:     p,
		inhibitor: inhibitor,
		opts:      opts,
		logger:    opts.Logger.WithPrefix("monitor"),
		backoff:   NewBackoff(opts.Interval, opts.MaxBackoff),
	}
}

// State returns the current state.
func (l *Loop) State() State { return l.state }

// Step samples once and applies a transition if the desired mode changed.
func (l *Loop) Step(ctx context.Context) error {
	sample, err := l.probe.Sample(ctx)
	if err != nil {
		return err
	}

	want := sample.Mode()
	switch {
	case want == clamshell.Inhibit && l.state == Idle:
		h, err := l.inhibitor.Enable(ctx)
		if err != nil {
			return err
		}
		l.handle = h
		l.state = Inhibiting
		l.logger.Info("clamshell mode on, preventing sleep", sampleFields(sample)...)

	case want == clamshell.Allow && l.state == Inhibiting:
		held := time.Since(l.handle.Acquired()).Round(time.Second)
		if err := l.inhibitor.Disable(l.handle); err != nil {
			return err
		}
		l.handle = nil
		l.state = Idle
		l.logger.Info("clamshell mode off, sleep allowed", append(sampleFields(sample), "held", held)...)
	}
	return nil
}

// Run cycles until ctx is cancelled or failures persist. Any held assertion
// is released before Run returns.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if rerr := l.release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	hints := l.watch(ctx)

	l.logger.Info("monitor started",
		"interval", l.opts.Interval,
		"failure_threshold", l.opts.FailureThreshold,
		"events", hints != nil,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("monitor stopping")
			return nil
		case <-timer.C:
		case <-hints:
		}

		delay := l.opts.Interval
		if err := l.Step(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.failures++
			l.logger.Warn("monitor cycle failed", "err", err, "consecutive", l.failures, "state", l.state)
			if l.opts.FailureThreshold > 0 && l.failures >= l.opts.FailureThreshold {
				return fmt.Errorf("%w: %d consecutive failures: %w", ErrPersistentFailure, l.failures, err)
			}
			delay = l.backoff.Next()
		} else {
			if l.failures > 0 {
				l.logger.Info("monitor recovered", "after", l.failures)
			}
			l.failures = 0
			l.backoff.Reset()
		}
		timer.Reset(delay)
	}
}

func (l *Loop) watch(ctx context.Context) <-chan struct{} {
	if !l.opts.Watch {
		return nil
	}
	w, ok := l.probe.(probe.Watcher)
	if !ok {
		return nil
	}
	hints, err := w.Watch(ctx)
	if err != nil {
		l.logger.Warn("change notifications unavailable, polling only", "err", err)
		return nil
	}
	return hints
}

// release drops the assertion when Inhibiting.
func (l *Loop) release() error {
	if l.state != Inhibiting {
		return nil
	}
	if err := l.inhibitor.Disable(l.handle); err != nil {
		l.logger.Error("failed to release sleep assertion on shutdown", "err", err)
		return err
	}
	l.handle = nil
	l.state = Idle
	l.logger.Info("sleep assertion released on shutdown")
	return nil
}

func sampleFields(s clamshell.Sample) []any {
	return []any{"lid", s.Lid, "display", s.Display, "external_displays", s.ExternalDisplays}
}
