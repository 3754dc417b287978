// Package config loads the server's TOML configuration file, grounded on
// Aureuma-si/tools/si/settings.go's load/save/default pattern (TOML via
// pelletier/go-toml/v2, defaults applied before decode, env
// overrides layered on top) — simplified to this server's single-document
// shape rather than si's multi-module settings split.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"
)

// Config is the server's full startup configuration (spec §6's CLI/env
// surface plus deployment knobs the CLI flags don't cover).
type Config struct {
	Transport string `toml:"transport"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	LogLevel  string `toml:"log_level"`

	BaseDir     string `toml:"base_dir"`
	DefaultTier string `toml:"default_security_tier"`
	DockerImage string `toml:"docker_isolation_image,omitempty"`
	UseDocker   bool   `toml:"use_docker_isolation"`

	ConnMaxTotal     int `toml:"conn_max_total"`
	ConnMaxPerIP     int `toml:"conn_max_per_ip"`
	ConnIdleTimeoutS int `toml:"conn_idle_timeout_seconds"`
	ReapIntervalS    int `toml:"conn_reap_interval_seconds"`

	RateLimitWindowS int `toml:"rate_limit_window_seconds"`
	RateLimitMax     int `toml:"rate_limit_max_requests"`
	BreakerFailures  int `toml:"breaker_failure_threshold"`
	BreakerRecoveryS int `toml:"breaker_recovery_timeout_seconds"`
	HealthIntervalS  int `toml:"health_check_interval_seconds"`

	Users []UserConfig `toml:"users,omitempty"`
}

// UserConfig is one auth.AddUser provisioning entry (spec §4.9's "user
// store"), loaded from the config file rather than a separate JSON
// registry the way auth.py does — keeping the server to a single
// configuration document.
type UserConfig struct {
	Username  string `toml:"username"`
	APIKey    string `toml:"api_key"`
	Role      string `toml:"role"`
	RateLimit int    `toml:"rate_limit_per_hour,omitempty"`
}

// Defaults returns the baseline configuration applied before a file is
// decoded over it, matching settings.go's defaultSettings. Keys the file
// omits keep these values; there is no second defaults pass after decode.
func Defaults() Config {
	return Config{
		Transport:        "stdio",
		Host:             "127.0.0.1",
		Port:             8787,
		LogLevel:         "INFO",
		BaseDir:          os.TempDir() + "/swiss-sandbox",
		DefaultTier:      string(security.TierModerate),
		ConnMaxTotal:     256,
		ConnMaxPerIP:     16,
		ConnIdleTimeoutS: 300,
		ReapIntervalS:    30,
		RateLimitWindowS: 60,
		RateLimitMax:     120,
		BreakerFailures:  5,
		BreakerRecoveryS: 30,
		HealthIntervalS:  60,
	}
}

// Load reads path (if it exists — a missing file is not an error, matching
// settings.go's os.IsNotExist tolerance) over Defaults(), then applies the
// SANDBOX_HOST and SANDBOX_PORT environment overrides whether or not a file
// was read. VIRTUAL_ENV, PATH and WORKSPACE_PATH are not read here; child
// processes inherit them with the rest of the server's environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.Host = env("SANDBOX_HOST", cfg.Host)
	cfg.Port = envInt("SANDBOX_PORT", cfg.Port)
	return cfg, nil
}

// env reads key, falling back to def when unset or blank, mirroring
// settings.go's env-with-default helpers used throughout the teacher's CLI.
func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// ApplyCLIOverrides layers non-empty CLI flag values over cfg, used by
// cmd/sandboxd so flags win over the config file which wins over defaults.
func (c Config) ApplyCLIOverrides(transport, host string, port int, logLevel string) Config {
	out := c
	if transport != "" {
		out.Transport = transport
	}
	if host != "" {
		out.Host = host
	}
	if port != 0 {
		out.Port = port
	}
	if logLevel != "" {
		out.LogLevel = logLevel
	}
	return out
}
