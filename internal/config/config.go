package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPollInterval     = 2 * time.Second
	DefaultFailureThreshold = 10
	DefaultMaxBackoff       = 30 * time.Second
	DefaultCallTimeout      = 5 * time.Second
	DefaultServiceLabel     = "io.github.ubunatic.clamshell"

	minPollInterval = 100 * time.Millisecond
	maxPollInterval = time.Hour
)

type Config struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	StateDir         string        `yaml:"state_dir"`
	ServiceLabel     string        `yaml:"service_label"`
}

// Overrides carries command-line values. Zero values mean "not set".
type Overrides struct {
	ConfigPath       string
	PollInterval     time.Duration
	FailureThreshold *int
	LogLevel         string
	LogFormat        string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PollInterval:     DefaultPollInterval,
		FailureThreshold: DefaultFailureThreshold,
		MaxBackoff:       DefaultMaxBackoff,
		CallTimeout:      DefaultCallTimeout,
		LogLevel:         "info",
		LogFormat:        "text",
		ServiceLabel:     DefaultServiceLabel,
	}
}

// Load resolves configuration from flags > env > config file > defaults.
func Load(o Overrides) (*Config, error) {
	cfg := Default()

	// 1. Load config file as base
	cfgPath, explicit := o.ConfigPath, o.ConfigPath != ""
	if !explicit {
		cfgPath = defaultConfigPath()
	}
	if cfgPath != "" {
		data, err := os.ReadFile(cfgPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// optional
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// 2. Environment variables override config file
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	// 3. CLI flags override everything
	if o.PollInterval != 0 {
		cfg.PollInterval = o.PollInterval
	}
	if o.FailureThreshold != nil {
		cfg.FailureThreshold = *o.FailureThreshold
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".clamshell")
	}
	abs, err := filepath.Abs(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("invalid state directory: %w", err)
	}
	cfg.StateDir = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if c.PollInterval < minPollInterval || c.PollInterval > maxPollInterval {
		return fmt.Errorf("poll_interval must be between %s and %s, got %s", minPollInterval, maxPollInterval, c.PollInterval)
	}
	if c.FailureThreshold < 0 {
		return fmt.Errorf("failure_threshold must not be negative, got %d", c.FailureThreshold)
	}
	if c.MaxBackoff < c.PollInterval {
		return fmt.Errorf("max_backoff (%s) must not be shorter than poll_interval (%s)", c.MaxBackoff, c.PollInterval)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must not be negative, got %s", c.CallTimeout)
	}
	if strings.TrimSpace(c.ServiceLabel) == "" {
		return errors.New("service_label is required")
	}
	return nil
}

// LockPath is the single-instance lock file of the monitor.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "clamshell.lock")
}

func applyEnv(cfg *Config) error {
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CLAMSHELL_POLL_INTERVAL", &cfg.PollInterval},
		{"CLAMSHELL_MAX_BACKOFF", &cfg.MaxBackoff},
		{"CLAMSHELL_CALL_TIMEOUT", &cfg.CallTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := os.Getenv("CLAMSHELL_FAILURE_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CLAMSHELL_FAILURE_THRESHOLD: %w", err)
		}
		cfg.FailureThreshold = n
	}
	if v := os.Getenv("CLAMSHELL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CLAMSHELL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CLAMSHELL_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".clamshell", "config.yaml")
}
