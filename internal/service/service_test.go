package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ubunatic/clamshell/internal/logging"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	// fail maps a command prefix to the error it returns.
	fail map[string]error
	out  map[string]string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, line)
	for prefix, err := range r.fail {
		if strings.HasPrefix(line, prefix) {
			return nil, err
		}
	}
	for prefix, out := range r.out {
		if strings.HasPrefix(line, prefix) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

func (r *fakeRunner) called(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, goos string) (Manager, *fakeRunner, string) {
	t.Helper()
	home := t.TempDir()
	runner := &fakeRunner{fail: map[string]error{}, out: map[string]string{}}
	m, err := newFor(goos, Config{
		Label:   "io.github.ubunatic.clamshell",
		HomeDir: home,
		UID:     501,
		Runner:  runner,
		Logger:  logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("newFor(%s): %v", goos, err)
	}
	return m, runner, home
}

var installOpts = Options{Executable: "/opt/homebrew/bin/clamshell"}

func TestUninstallWithoutInstallIsIdempotent(t *testing.T) {
	for _, goos := range []string{"darwin", "linux"} {
		t.Run(goos, func(t *testing.T) {
			m, runner, _ := newTestManager(t, goos)
			// the service manager complains about an unknown service
			runner.fail["launchctl bootout"] = errors.New("Boot-out failed: 3: No such process")
			runner.fail["systemctl --user disable"] = errors.New("Unit clamshell.service does not exist")

			if err := m.Uninstall(context.Background()); err != nil {
				t.Fatalf("first Uninstall: %v", err)
			}
			if err := m.Uninstall(context.Background()); err != nil {
				t.Fatalf("second Uninstall: %v", err)
			}
		})
	}
}

func TestLaunchdInstallUninstall(t *testing.T) {
	m, runner, home := newTestManager(t, "darwin")
	ctx := context.Background()

	if err := m.Install(ctx, installOpts); err != nil {
		t.Fatalf("Install: %v", err)
	}

	path := filepath.Join(home, "Library", "LaunchAgents", "io.github.ubunatic.clamshell.plist")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read plist: %v", err)
	}
	plist := string(data)
	for _, want := range []string{
		"<string>io.github.ubunatic.clamshell</string>",
		"<string>/opt/homebrew/bin/clamshell</string>",
		"<string>run</string>",
		"<key>SuccessfulExit</key>",
	} {
		if !strings.Contains(plist, want) {
			t.Errorf("plist missing %q:\n%s", want, plist)
		}
	}
	if runner.called("launchctl bootstrap gui/501 "+path) != 1 {
		t.Fatalf("expected bootstrap call, got %v", runner.calls)
	}

	st, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Installed || st.Path != path || st.Manager != "launchd" {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Running {
		t.Fatalf("agent reported running without a running state: %+v", st)
	}

	if err := m.Uninstall(ctx); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("plist still present: %v", err)
	}
	if runner.called("launchctl bootout gui/501/io.github.ubunatic.clamshell") != 1 {
		t.Fatalf("expected bootout call, got %v", runner.calls)
	}
}

func TestInstallRefusesExistingWithoutForce(t *testing.T) {
	for _, goos := range []string{"darwin", "linux"} {
		t.Run(goos, func(t *testing.T) {
			m, _, _ := newTestManager(t, goos)
			ctx := context.Background()

			if err := m.Install(ctx, installOpts); err != nil {
				t.Fatalf("Install: %v", err)
			}
			err := m.Install(ctx, installOpts)
			if !errors.Is(err, ErrInstall) || !errors.Is(err, ErrAlreadyInstalled) {
				t.Fatalf("expected ErrAlreadyInstalled, got %v", err)
			}

			forced := installOpts
			forced.Force = true
			forced.Args = []string{"run", "--interval", "5s"}
			if err := m.Install(ctx, forced); err != nil {
				t.Fatalf("forced Install: %v", err)
			}
			if err := m.Install(ctx, forced); err != nil {
				t.Fatalf("repeated forced Install: %v", err)
			}
		})
	}
}

func TestSystemdInstallUninstall(t *testing.T) {
	m, runner, home := newTestManager(t, "linux")
	ctx := context.Background()
	opts := Options{Executable: "/home/me/My Tools/clamshell"}

	if err := m.Install(ctx, opts); err != nil {
		t.Fatalf("Install: %v", err)
	}

	path := filepath.Join(home, ".config", "systemd", "user", "clamshell.service")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read unit: %v", err)
	}
	if !strings.Contains(string(data), `ExecStart="/home/me/My Tools/clamshell" run`) {
		t.Fatalf("unexpected unit:\n%s", data)
	}
	if !strings.Contains(string(data), "Restart=on-failure") {
		t.Fatalf("unit does not restart on failure:\n%s", data)
	}
	if runner.called("systemctl --user enable --now clamshell.service") != 1 {
		t.Fatalf("expected enable --now, got %v", runner.calls)
	}

	runner.out["systemctl --user is-active"] = "active\n"
	st, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Installed || !st.Running {
		t.Fatalf("unexpected status %+v", st)
	}

	if err := m.Uninstall(ctx); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("unit still present: %v", err)
	}
	if runner.called("systemctl --user daemon-reload") != 2 {
		t.Fatalf("expected daemon-reload on install and uninstall, got %v", runner.calls)
	}
}

func TestInstallFailureWrapsErrInstall(t *testing.T) {
	m, runner, _ := newTestManager(t, "linux")
	runner.fail["systemctl --user daemon-reload"] = errors.New("Failed to connect to bus")

	err := m.Install(context.Background(), installOpts)
	if !errors.Is(err, ErrInstall) {
		t.Fatalf("expected ErrInstall, got %v", err)
	}

	if err := m.Install(context.Background(), Options{}); !errors.Is(err, ErrInstall) {
		t.Fatalf("expected ErrInstall for empty executable, got %v", err)
	}
}

func TestNewUnsupported(t *testing.T) {
	_, err := newFor("plan9", Config{Label: "x", HomeDir: t.TempDir()})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestExecLine(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"/usr/bin/clamshell", "run", "--log-level", "debug"}, "/usr/bin/clamshell run --log-level debug"},
		{[]string{"/opt/100%/clamshell", "run"}, "/opt/100%%/clamshell run"},
		{[]string{"/home/me/My %h/clamshell", "run", "--config", "/tmp/a%b.yaml"}, `"/home/me/My %%h/clamshell" run --config /tmp/a%%b.yaml`},
	}
	for _, tt := range tests {
		if got := execLine(tt.args); got != tt.want {
			t.Errorf("execLine(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestLaunchdStatusRunning(t *testing.T) {
	tests := []struct {
		name string
		out  string
		fail bool
		want bool
	}{
		{"running", "gui/501/io.github.ubunatic.clamshell = {\n\tactive count = 1\n\tstate = running\n\tpid = 812\n}\n", false, true},
		{"loaded but waiting", "gui/501/io.github.ubunatic.clamshell = {\n\tactive count = 0\n\tstate = not running\n}\n", false, false},
		{"not loaded", "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, runner, _ := newTestManager(t, "darwin")
			if tt.fail {
				runner.fail["launchctl print"] = errors.New("Could not find service")
			} else {
				runner.out["launchctl print"] = tt.out
			}
			st, err := m.Status(context.Background())
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if st.Running != tt.want {
				t.Fatalf("Running = %v, want %v", st.Running, tt.want)
			}
		})
	}
}
