package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
)

const unitName = "clamshell.service"

var unitTemplate = template.Must(template.New("unit").Funcs(template.FuncMap{
	"execLine": execLine,
}).Parse(`[Unit]
Description=Keep the system awake in clamshell mode ({{ .Label }})
Documentation=https://github.com/ubunatic/clamshell

[Service]
Type=simple
ExecStart={{ execLine .Args }}
Restart=on-failure
RestartSec=10

[Install]
WantedBy=default.target
`))

// systemd manages a user unit.
type systemd struct {
	cfg Config
}

func newSystemd(cfg Config) *systemd {
	return &systemd{cfg: cfg}
}

func (s *systemd) Name() string { return "systemd" }

func (s *systemd) path() string {
	return filepath.Join(s.cfg.HomeDir, ".config", "systemd", "user", unitName)
}

func (s *systemd) systemctl(ctx context.Context, args ...string) ([]byte, error) {
	return s.cfg.Runner.Run(ctx, "systemctl", append([]string{"--user"}, args...)...)
}

func (s *systemd) render(args []string) ([]byte, error) {
	var buf bytes.Buffer
	err := unitTemplate.Execute(&buf, struct {
		Label string
		Args  []string
	}{s.cfg.Label, args})
	return buf.Bytes(), err
}

func (s *systemd) Install(ctx context.Context, opts Options) error {
	args, err := programArgs(opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}

	path := s.path()
	found, err := exists(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	if found && !opts.Force {
		return fmt.Errorf("%w: %w: %s", ErrInstall, ErrAlreadyInstalled, path)
	}

	content, err := s.render(args)
	if err != nil {
		return fmt.Errorf("%w: render unit: %w", ErrInstall, err)
	}
	if err := writeDescriptor(path, content); err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	if _, err := s.systemctl(ctx, "daemon-reload"); err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	start := [][]string{{"enable", "--now", unitName}}
	if found {
		// pick up the new ExecStart
		start = [][]string{{"enable", unitName}, {"restart", unitName}}
	}
	for _, args := range start {
		if _, err := s.systemctl(ctx, args...); err != nil {
			return fmt.Errorf("%w: %w", ErrInstall, err)
		}
	}

	s.cfg.Logger.Info("user unit installed", "path", path, "unit", unitName)
	return nil
}

func (s *systemd) Uninstall(ctx context.Context) error {
	// fails when the unit is unknown, which is fine
	if _, err := s.systemctl(ctx, "disable", "--now", unitName); err != nil {
		s.cfg.Logger.Debug("disable", "err", err)
	}

	removed, err := removeDescriptor(s.path())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUninstall, err)
	}
	if !removed {
		return nil
	}
	if _, err := s.systemctl(ctx, "daemon-reload"); err != nil {
		return fmt.Errorf("%w: %w", ErrUninstall, err)
	}
	s.cfg.Logger.Info("user unit removed", "path", s.path())
	return nil
}

func (s *systemd) Status(ctx context.Context) (Status, error) {
	st := Status{Manager: s.Name(), Path: s.path()}
	found, err := exists(st.Path)
	if err != nil {
		return st, err
	}
	st.Installed = found
	out, err := s.systemctl(ctx, "is-active", unitName)
	st.Running = err == nil && strings.TrimSpace(string(out)) == "active"
	return st, nil
}

// execLine quotes arguments for ExecStart. systemd expands % specifiers in
// ExecStart, so a literal % is doubled.
func execLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		a = strings.ReplaceAll(a, "%", "%%")
		if a == "" || strings.ContainsAny(a, " \t\"'\\") {
			quoted[i] = strconv.Quote(a)
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}
