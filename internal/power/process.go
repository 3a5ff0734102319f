//go:build darwin || linux

package power

import (
	"fmt"
	"os/exec"
	"sync"
)

// processAssertion holds sleep prevention for as long as a helper process
// lives. Killing the helper releases the assertion.
type processAssertion struct {
	name string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func startProcessAssertion(name string, cmd *exec.Cmd) (*processAssertion, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	a := &processAssertion{name: name, cmd: cmd, done: make(chan struct{})}

	// Reap the child in background so it doesn't become a zombie.
	go func() {
		_ = cmd.Wait()
		close(a.done)
	}()

	return a, nil
}

func (a *processAssertion) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cmd == nil || a.cmd.Process == nil {
		return nil
	}

	select {
	case <-a.done:
		// helper already gone
	default:
		if err := a.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to stop %s: %w", a.name, err)
		}
		<-a.done
	}

	a.cmd = nil
	return nil
}

func (a *processAssertion) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cmd == nil || a.cmd.Process == nil {
		return a.name + " (released)"
	}
	return fmt.Sprintf("%s pid=%d", a.name, a.cmd.Process.Pid)
}
