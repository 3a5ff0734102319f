package power

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Handle identifies the live assertion owned by a Controller.
type Handle struct {
	id        uint64
	assertion Assertion
	acquired  time.Time
}

// ID is a process-local sequence number, unique per acquisition.
func (h *Handle) ID() uint64 { return h.id }

// Acquired reports when the assertion was taken. Zero for a nil handle.
func (h *Handle) Acquired() time.Time {
	if h == nil {
		return time.Time{}
	}
	return h.acquired
}

func (h *Handle) String() string {
	return fmt.Sprintf("#%d %s", h.id, h.assertion)
}

// Controller owns at most one sleep assertion at a time. Enable and Disable
// are both idempotent.
type Controller struct {
	backend Backend
	logger  *log.Logger
	timeout time.Duration

	mu     sync.Mutex
	handle *Handle
	seq    uint64
}

// NewController wraps backend. A non-positive timeout disables the per-call
// deadline.
func NewController(backend Backend, logger *log.Logger, timeout time.Duration) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		backend: backend,
		logger:  logger.WithPrefix("inhibitor"),
		timeout: timeout,
	}
}

// Enable acquires the sleep assertion, or returns the live handle when one is
// already held.
func (c *Controller) Enable(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		return c.handle, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	assertion, err := c.backend.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire: %w", ErrInhibitor, err)
	}

	c.seq++
	c.handle = &Handle{id: c.seq, assertion: assertion, acquired: time.Now()}
	c.logger.Debug("sleep assertion acquired", "handle", c.handle.String())
	return c.handle, nil
}

// Disable releases h. A nil, stale or already released handle is a no-op.
// On release failure the handle stays live so the caller can retry.
func (c *Controller) Disable(h *Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h == nil || c.handle == nil || h != c.handle {
		return nil
	}

	if err := h.assertion.Release(); err != nil {
		return fmt.Errorf("%w: release: %w", ErrInhibitor, err)
	}

	c.logger.Debug("sleep assertion released", "handle", h.String(), "held", time.Since(h.acquired).Round(time.Millisecond))
	c.handle = nil
	return nil
}

// Active reports whether an assertion is currently held.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Current returns the live handle, or nil.
func (c *Controller) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Close releases any live assertion.
func (c *Controller) Close() error {
	return c.Disable(c.Current())
}
