package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsSetsBaselineValues(t *testing.T) {
	cfg := Defaults()
	if cfg.Transport != "stdio" {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.Port != 8787 {
		t.Fatalf("expected default port 8787, got %d", cfg.Port)
	}
	if cfg.RateLimitMax != 120 {
		t.Fatalf("expected default rate limit max 120, got %d", cfg.RateLimitMax)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != Defaults().Transport || cfg.Port != Defaults().Port {
		t.Fatalf("expected defaults for a missing file, got %+v", cfg)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != Defaults().Transport || cfg.Port != Defaults().Port {
		t.Fatalf("expected defaults for an empty path, got %+v", cfg)
	}
}

func TestLoadParsesTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox.toml")
	doc := `
transport = "http"
port = 9999
default_security_tier = "strict"

[[users]]
username = "admin"
api_key = "abc123"
role = "admin"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != "http" {
		t.Fatalf("expected transport http, got %q", cfg.Transport)
	}
	if cfg.Port != 9999 {
		t.Fatalf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.LogLevel != "INFO" {
		t.Fatalf("expected untouched field to keep its default, got %q", cfg.LogLevel)
	}
	if len(cfg.Users) != 1 || cfg.Users[0].Username != "admin" {
		t.Fatalf("expected one provisioned user, got %+v", cfg.Users)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("transport = ["), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for malformed TOML")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("SANDBOX_HOST", "0.0.0.0")
	t.Setenv("SANDBOX_PORT", "1234")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "0.0.0.0" {
		t.Fatalf("expected env override for host, got %q", cfg.Host)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected env override for port, got %d", cfg.Port)
	}
}

func TestLoadIgnoresInvalidEnvPort(t *testing.T) {
	t.Setenv("SANDBOX_PORT", "not-a-number")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != Defaults().Port {
		t.Fatalf("expected invalid env port to fall back to default, got %d", cfg.Port)
	}
}

func TestApplyCLIOverridesWinsOverConfig(t *testing.T) {
	cfg := Defaults()
	out := cfg.ApplyCLIOverrides("http", "10.0.0.1", 4000, "DEBUG")
	if out.Transport != "http" || out.Host != "10.0.0.1" || out.Port != 4000 || out.LogLevel != "DEBUG" {
		t.Fatalf("expected every CLI override to apply, got %+v", out)
	}
}

func TestApplyCLIOverridesLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := Defaults()
	out := cfg.ApplyCLIOverrides("", "", 0, "")
	if out.Transport != cfg.Transport || out.Host != cfg.Host || out.Port != cfg.Port || out.LogLevel != cfg.LogLevel {
		t.Fatalf("expected zero-value overrides to be no-ops, got %+v", out)
	}
}
