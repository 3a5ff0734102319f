package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

var plistTemplate = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{ .Label | html }}</string>
	<key>ProgramArguments</key>
	<array>
{{- range .Args }}
		<string>{{ . | html }}</string>
{{- end }}
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
	</dict>
	<key>ThrottleInterval</key>
	<integer>10</integer>
	<key>ProcessType</key>
	<string>Background</string>
	<key>StandardOutPath</key>
	<string>{{ .LogPath | html }}</string>
	<key>StandardErrorPath</key>
	<string>{{ .LogPath | html }}</string>
</dict>
</plist>
`))

// launchd manages a per-user LaunchAgent.
type launchd struct {
	cfg Config
}

func newLaunchd(cfg Config) *launchd {
	return &launchd{cfg: cfg}
}

func (l *launchd) Name() string { return "launchd" }

func (l *launchd) path() string {
	return filepath.Join(l.cfg.HomeDir, "Library", "LaunchAgents", l.cfg.Label+".plist")
}

func (l *launchd) logPath() string {
	return filepath.Join(l.cfg.HomeDir, "Library", "Logs", "clamshell.log")
}

func (l *launchd) domain() string {
	return fmt.Sprintf("gui/%d", l.cfg.UID)
}

func (l *launchd) target() string {
	return l.domain() + "/" + l.cfg.Label
}

func (l *launchd) render(args []string) ([]byte, error) {
	var buf bytes.Buffer
	err := plistTemplate.Execute(&buf, struct {
		Label   string
		Args    []string
		LogPath string
	}{l.cfg.Label, args, l.logPath()})
	return buf.Bytes(), err
}

func (l *launchd) Install(ctx context.Context, opts Options) error {
	args, err := programArgs(opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}

	path := l.path()
	found, err := exists(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	if found {
		if !opts.Force {
			return fmt.Errorf("%w: %w: %s", ErrInstall, ErrAlreadyInstalled, path)
		}
		// bootstrap refuses an already loaded label
		if _, err := l.cfg.Runner.Run(ctx, "launchctl", "bootout", l.target()); err != nil {
			l.cfg.Logger.Debug("bootout before reinstall", "err", err)
		}
	}

	content, err := l.render(args)
	if err != nil {
		return fmt.Errorf("%w: render plist: %w", ErrInstall, err)
	}
	if err := writeDescriptor(path, content); err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	if _, err := l.cfg.Runner.Run(ctx, "launchctl", "bootstrap", l.domain(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}

	l.cfg.Logger.Info("launch agent installed", "path", path, "label", l.cfg.Label)
	return nil
}

func (l *launchd) Uninstall(ctx context.Context) error {
	// fails when the agent is not loaded, which is fine
	if _, err := l.cfg.Runner.Run(ctx, "launchctl", "bootout", l.target()); err != nil {
		l.cfg.Logger.Debug("bootout", "err", err)
	}

	removed, err := removeDescriptor(l.path())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUninstall, err)
	}
	if removed {
		l.cfg.Logger.Info("launch agent removed", "path", l.path())
	}
	return nil
}

func (l *launchd) Status(ctx context.Context) (Status, error) {
	st := Status{Manager: l.Name(), Path: l.path()}
	found, err := exists(st.Path)
	if err != nil {
		return st, err
	}
	st.Installed = found
	if out, err := l.cfg.Runner.Run(ctx, "launchctl", "print", l.target()); err == nil {
		st.Running = launchdRunning(out)
	}
	return st, nil
}

// launchdRunning reports whether `launchctl print` shows a running job. A
// loaded agent that is between restarts prints "state = waiting" or similar.
func launchdRunning(out []byte) bool {
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "state = running" {
			return true
		}
	}
	return false
}
