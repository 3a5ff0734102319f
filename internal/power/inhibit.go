package power

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
)

var (
	// ErrInhibitor marks failures to acquire or release the sleep assertion.
	ErrInhibitor = errors.New("sleep inhibitor")

	// ErrUnsupported is returned by backends on platforms without a known
	// sleep-prevention mechanism.
	ErrUnsupported = errors.New("sleep inhibition is not supported on this platform")

	// ErrDenied is returned when the OS refuses every lock the backend asks for.
	ErrDenied = errors.New("sleep inhibitor denied")
)

// Assertion is a held OS-level request that prevents system sleep.
type Assertion interface {
	// Release drops the assertion. It must be safe to call more than once.
	Release() error
	String() string
}

// Backend acquires sleep assertions from the operating system.
type Backend interface {
	Acquire(ctx context.Context) (Assertion, error)
}

// Reason is reported to the OS alongside the assertion.
type Reason struct {
	Who string
	Why string
}

// DefaultReason identifies clamshell in inhibitor listings.
var DefaultReason = Reason{
	Who: "clamshell",
	Why: "Lid closed with an external display attached",
}

// NewBackend returns a platform-appropriate Backend.
// See inhibit_darwin.go, inhibit_linux.go, inhibit_other.go.
func NewBackend(reason Reason, logger *log.Logger) Backend {
	if logger == nil {
		logger = log.Default()
	}
	return newBackend(reason, logger.WithPrefix("inhibitor"))
}
