package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const (
	defaultDialTimeout      = 3 * time.Second
	defaultCallTimeout      = 10 * time.Second
	defaultLivenessInterval = 2 * time.Second
	defaultLastSeenInterval = 30 * time.Second
	defaultKillTimeout      = 1600 * time.Millisecond

	envSocket           = "PMCTL_SOCKET"
	envNoAutoConnect    = "PMCTL_NOAUTOCONNECT"
	envDialTimeout      = "PMCTL_DIAL_TIMEOUT"
	envCallTimeout      = "PMCTL_CALL_TIMEOUT"
	envLivenessInterval = "PMCTL_LIVENESS_INTERVAL"
	envLastSeenInterval = "PMCTL_LAST_SEEN_INTERVAL"
	envKillTimeout      = "PMCTL_KILL_TIMEOUT"
	envLogLevel         = "PMCTL_LOG_LEVEL"
)

// Config aggregates client and daemon settings.
type Config struct {
	// Socket overrides the daemon socket location. Empty means the
	// per-user runtime directory.
	Socket        string
	NoAutoConnect bool
	DialTimeout   time.Duration
	CallTimeout   time.Duration

	LivenessInterval time.Duration
	LastSeenInterval time.Duration
	// KillTimeout is how long stop waits after SIGTERM before SIGKILL.
	KillTimeout time.Duration

	LogLevel log.Level
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DialTimeout:      defaultDialTimeout,
		CallTimeout:      defaultCallTimeout,
		LivenessInterval: defaultLivenessInterval,
		LastSeenInterval: defaultLastSeenInterval,
		KillTimeout:      defaultKillTimeout,
		LogLevel:         log.InfoLevel,
	}
}

// Load builds a Config from an optional JSON or YAML file plus environment
// overrides. The format is picked by extension; anything other than
// .yaml/.yml is read as JSON.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

type fileConfig struct {
	Socket           string `json:"socket" yaml:"socket"`
	NoAutoConnect    *bool  `json:"no_autoconnect" yaml:"no_autoconnect"`
	DialTimeout      string `json:"dial_timeout" yaml:"dial_timeout"`
	CallTimeout      string `json:"call_timeout" yaml:"call_timeout"`
	LivenessInterval string `json:"liveness_interval" yaml:"liveness_interval"`
	LastSeenInterval string `json:"last_seen_interval" yaml:"last_seen_interval"`
	KillTimeout      string `json:"kill_timeout" yaml:"kill_timeout"`
	LogLevel         string `json:"log_level" yaml:"log_level"`
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return err
	}

	if raw.Socket != "" {
		cfg.Socket = raw.Socket
	}
	if raw.NoAutoConnect != nil {
		cfg.NoAutoConnect = *raw.NoAutoConnect
	}
	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"dial_timeout", raw.DialTimeout, &cfg.DialTimeout},
		{"call_timeout", raw.CallTimeout, &cfg.CallTimeout},
		{"liveness_interval", raw.LivenessInterval, &cfg.LivenessInterval},
		{"last_seen_interval", raw.LastSeenInterval, &cfg.LastSeenInterval},
		{"kill_timeout", raw.KillTimeout, &cfg.KillTimeout},
	}
	for _, d := range durations {
		if d.val == "" {
			continue
		}
		dur, err := parsePositive(d.val)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = dur
	}
	if raw.LogLevel != "" {
		lvl, err := log.ParseLevel(raw.LogLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envSocket); v != "" {
		cfg.Socket = v
	}
	if v := os.Getenv(envNoAutoConnect); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NoAutoConnect = b
		} else {
			log.Warn("ignoring invalid environment value", "var", envNoAutoConnect, "value", v, "err", err)
		}
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{envDialTimeout, &cfg.DialTimeout},
		{envCallTimeout, &cfg.CallTimeout},
		{envLivenessInterval, &cfg.LivenessInterval},
		{envLastSeenInterval, &cfg.LastSeenInterval},
		{envKillTimeout, &cfg.KillTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		if dur, err := parsePositive(v); err == nil {
			*d.dst = dur
		} else {
			log.Warn("ignoring invalid environment value", "var", d.env, "value", v, "err", err)
		}
	}

	if v := os.Getenv(envLogLevel); v != "" {
		if lvl, err := log.ParseLevel(v); err == nil {
			cfg.LogLevel = lvl
		} else {
			log.Warn("ignoring invalid environment value", "var", envLogLevel, "value", v, "err", err)
		}
	}
}

func parsePositive(v string) (time.Duration, error) {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if dur <= 0 {
		return 0, fmt.Errorf("duration %q must be > 0", v)
	}
	return dur, nil
}
