package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"CLAMSHELL_POLL_INTERVAL", "CLAMSHELL_MAX_BACKOFF", "CLAMSHELL_CALL_TIMEOUT",
		"CLAMSHELL_FAILURE_THRESHOLD", "CLAMSHELL_LOG_LEVEL", "CLAMSHELL_LOG_FORMAT",
		"CLAMSHELL_STATE_DIR",
	} {
		t.Setenv(key, "")
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %s", cfg.PollInterval)
	}
	if cfg.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("failure threshold = %d", cfg.FailureThreshold)
	}
	if cfg.StateDir != filepath.Join(home, ".clamshell") {
		t.Errorf("state dir = %s", cfg.StateDir)
	}
	if cfg.LockPath() != filepath.Join(home, ".clamshell", "clamshell.lock") {
		t.Errorf("lock path = %s", cfg.LockPath())
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".clamshell", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "poll_interval: 4s\nfailure_threshold: 3\nlog_level: debug\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 4*time.Second || cfg.FailureThreshold != 3 || cfg.LogFormat != "json" {
		t.Fatalf("file values not applied: %+v", cfg)
	}

	t.Setenv("CLAMSHELL_POLL_INTERVAL", "3s")
	t.Setenv("CLAMSHELL_LOG_LEVEL", "warn")
	cfg, err = Load(Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 3*time.Second || cfg.LogLevel != "warn" {
		t.Fatalf("env values not applied: %+v", cfg)
	}

	zero := 0
	cfg, err = Load(Overrides{PollInterval: time.Second, FailureThreshold: &zero, LogLevel: "error"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != time.Second || cfg.FailureThreshold != 0 || cfg.LogLevel != "error" {
		t.Fatalf("flag values not applied: %+v", cfg)
	}
}

func TestLoadExplicitConfigMustExist(t *testing.T) {
	isolate(t)
	_, err := Load(Overrides{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"interval too short", map[string]string{"CLAMSHELL_POLL_INTERVAL": "10ms"}, "poll_interval"},
		{"negative threshold", map[string]string{"CLAMSHELL_FAILURE_THRESHOLD": "-1"}, "failure_threshold"},
		{"bad threshold", map[string]string{"CLAMSHELL_FAILURE_THRESHOLD": "many"}, "CLAMSHELL_FAILURE_THRESHOLD"},
		{"backoff below interval", map[string]string{"CLAMSHELL_MAX_BACKOFF": "1s", "CLAMSHELL_POLL_INTERVAL": "5s"}, "max_backoff"},
		{"bad duration", map[string]string{"CLAMSHELL_CALL_TIMEOUT": "soon"}, "CLAMSHELL_CALL_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(Overrides{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
