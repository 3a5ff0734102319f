// Package service registers clamshell with the OS service manager so the
// monitor starts at login and is restarted when it fails.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	ErrInstall          = errors.New("service install")
	ErrUninstall        = errors.New("service uninstall")
	ErrAlreadyInstalled = errors.New("service descriptor already exists (use --force to overwrite)")
	ErrUnsupported      = errors.New("no supported service manager on this platform")
)

// Options controls Install.
type Options struct {
	// Executable is the absolute path of the clamshell binary.
	Executable string
	// Args are passed to Executable; defaults to ["run"].
	Args []string
	// Force overwrites an existing descriptor.
	Force bool
}

// Status describes the registration.
type Status struct {
	Manager   string
	Path      string
	Installed bool
	Running   bool
}

// Manager installs and removes the service descriptor.
type Manager interface {
	Install(ctx context.Context, opts Options) error
	// Uninstall stops the service and removes its descriptor. It succeeds when
	// nothing is installed.
	Uninstall(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	Name() string
}

// Runner runs service manager commands and returns combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(bytes.TrimSpace(out)))
		if msg != "" {
			return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// Config selects paths and collaborators. Zero fields take defaults from
// the current user.
type Config struct {
	Label   string
	HomeDir string
	UID     int
	Runner  Runner
	Logger  *log.Logger
}

func (c Config) withDefaults() (Config, error) {
	if c.Label == "" {
		return c, errors.New("service label is required")
	}
	if c.HomeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return c, fmt.Errorf("resolve home directory: %w", err)
		}
		c.HomeDir = home
	}
	if c.UID == 0 {
		c.UID = os.Getuid()
	}
	if c.Runner == nil {
		c.Runner = ExecRunner{}
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	c.Logger = c.Logger.WithPrefix("service")
	return c, nil
}

// New returns the manager for the running OS.
func New(cfg Config) (Manager, error) {
	return newFor(runtime.GOOS, cfg)
}

func newFor(goos string, cfg Config) (Manager, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	switch goos {
	case "darwin":
		return newLaunchd(cfg), nil
	case "linux":
		return newSystemd(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, goos)
	}
}

func programArgs(opts Options) ([]string, error) {
	if strings.TrimSpace(opts.Executable) == "" {
		return nil, errors.New("executable path is empty")
	}
	args := opts.Args
	if len(args) == 0 {
		args = []string{"run"}
	}
	return append([]string{opts.Executable}, args...), nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func writeDescriptor(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

func removeDescriptor(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
