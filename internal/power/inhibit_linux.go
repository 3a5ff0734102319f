//go:build linux

package power

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	logindDest    = "org.freedesktop.login1"
	logindPath    = "/org/freedesktop/login1"
	logindInhibit = "org.freedesktop.login1.Manager.Inhibit"

	// handle-lid-switch keeps logind from suspending on lid close; sleep
	// blocks every other suspend request while the lock is held.
	inhibitWhat = "sleep:handle-lid-switch"
	// sleepOnly needs only the inhibit-block-sleep polkit action. logind
	// honors it on lid close only with LidSwitchIgnoreInhibited=no.
	sleepOnly = "sleep"
)

// polkit refusals as reported by logind.
var deniedErrors = []string{
	"org.freedesktop.DBus.Error.AccessDenied",
	"org.freedesktop.DBus.Error.InteractiveAuthorizationRequired",
}

type linuxBackend struct {
	reason Reason
	logger *log.Logger
}

func newBackend(reason Reason, logger *log.Logger) Backend {
	return &linuxBackend{reason: reason, logger: logger}
}

// Acquire takes a logind block inhibitor over the system bus. When the bus is
// unreachable it falls back to a systemd-inhibit helper process.
func (l *linuxBackend) Acquire(ctx context.Context) (Assertion, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return l.acquireHelper(ctx, err)
	}
	defer conn.Close()

	obj := conn.Object(logindDest, dbus.ObjectPath(logindPath))
	return l.acquireLogind(ctx, func(ctx context.Context, what string) (int, error) {
		call := obj.CallWithContext(ctx, logindInhibit, 0,
			what,         // what to inhibit
			l.reason.Who, // who
			l.reason.Why, // why
			"block")      // mode
		if call.Err != nil {
			return -1, call.Err
		}
		var fd dbus.UnixFD
		if err := call.Store(&fd); err != nil {
			return -1, fmt.Errorf("failed to extract inhibitor file descriptor: %w", err)
		}
		return int(fd), nil
	})
}

type inhibitFunc func(ctx context.Context, what string) (int, error)

// acquireLogind asks for the lid switch lock first. polkit only grants
// inhibit-handle-lid-switch to callers in a local session, which a service
// started by the user manager may not be; on that refusal it retries with a
// plain sleep lock.
func (l *linuxBackend) acquireLogind(ctx context.Context, inhibit inhibitFunc) (Assertion, error) {
	fd, err := inhibit(ctx, inhibitWhat)
	if err == nil {
		return &fdAssertion{fd: fd, what: inhibitWhat}, nil
	}
	if !accessDenied(err) {
		return nil, fmt.Errorf("failed to acquire logind inhibitor lock: %w", err)
	}

	l.logger.Warn("polkit denied the lid switch lock; holding a sleep lock instead, "+
		"which stops lid-close suspend only with LidSwitchIgnoreInhibited=no in logind.conf",
		"what", inhibitWhat, "err", err)

	fd, err = inhibit(ctx, sleepOnly)
	if err == nil {
		return &fdAssertion{fd: fd, what: sleepOnly}, nil
	}
	if accessDenied(err) {
		return nil, fmt.Errorf("%w: polkit refused logind inhibitor locks: %w", ErrDenied, err)
	}
	return nil, fmt.Errorf("failed to acquire logind sleep lock: %w", err)
}

func accessDenied(err error) bool {
	var dbusErr dbus.Error
	if !errors.As(err, &dbusErr) {
		return false
	}
	return slices.Contains(deniedErrors, dbusErr.Name)
}

func (l *linuxBackend) acquireHelper(ctx context.Context, busErr error) (Assertion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := exec.LookPath("systemd-inhibit")
	if err != nil {
		return nil, fmt.Errorf("system bus unavailable (%v) and systemd-inhibit not found: %w", busErr, err)
	}

	cmd := exec.Command(path,
		"--what="+inhibitWhat,
		"--who="+l.reason.Who,
		"--why="+l.reason.Why,
		"--mode=block",
		"sleep", "infinity",
	)
	// Kernel sends SIGTERM to the helper when the daemon dies.
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}

	return startProcessAssertion("systemd-inhibit", cmd)
}

// fdAssertion is a logind inhibitor lock; closing the descriptor releases it.
type fdAssertion struct {
	mu   sync.Mutex
	fd   int
	what string
}

func (a *fdAssertion) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fd < 0 {
		return nil
	}
	if err := unix.Close(a.fd); err != nil {
		return fmt.Errorf("failed to close inhibitor fd %d: %w", a.fd, err)
	}
	a.fd = -1
	return nil
}

func (a *fdAssertion) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fd < 0 {
		return fmt.Sprintf("logind %s (released)", a.what)
	}
	return fmt.Sprintf("logind %s fd=%d", a.what, a.fd)
}
