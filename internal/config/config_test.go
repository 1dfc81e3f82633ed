package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/flare.db")
	if cfg.Database.Path != "/tmp/flare.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Server.APIEndpoint != "/api/v1" || cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected endpoints %#v", cfg.Server)
	}
	ttl, err := cfg.Identity.TTL()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl != 24*time.Hour {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/flare.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/flare.db"

[server]
http_bind = "0.0.0.0:9090"

[identity]
issuer = "events.example"
token_ttl = "2h"

[logging]
level = "debug"

[logging.dev_file]
enabled = true
dir = "/var/log/flare"

[telemetry]
otlp_endpoint = "collector:4318"
insecure = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/flare.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Server.HTTPBind != "0.0.0.0:9090" || cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("unexpected server config %#v", cfg.Server)
	}
	if cfg.Identity.Issuer != "events.example" || cfg.Identity.Audience != "flare-api" {
		t.Fatalf("unexpected identity config %#v", cfg.Identity)
	}
	if ttl, _ := cfg.Identity.TTL(); ttl != 2*time.Hour {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	if !cfg.Logging.DevFile.Enabled || cfg.Logging.DevFile.Dir != "/var/log/flare" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config %#v", cfg.Logging)
	}
	if cfg.Telemetry.OTLPEndpoint != "collector:4318" || !cfg.Telemetry.Insecure {
		t.Fatalf("unexpected telemetry config %#v", cfg.Telemetry)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[database]\npath = \"/from/file.db\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("FLARE_DB_PATH", "/from/env.db")
	t.Setenv("FLARE_SIGNING_KEY", "env-key")
	t.Setenv("FLARE_LOG_LEVEL", "warn")

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/from/env.db" {
		t.Fatalf("expected env db path, got %q", cfg.Database.Path)
	}
	if cfg.Identity.SigningKey != "env-key" || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected env overrides %#v %#v", cfg.Identity, cfg.Logging)
	}
	if cfg.Server.HTTPBind != "127.0.0.1:8080" {
		t.Fatalf("expected unset env to keep default bind, got %q", cfg.Server.HTTPBind)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"empty db":     "[database]\npath = \" \"\n",
		"endpoint":     "[server]\napi_endpoint = \"api\"\n",
		"ttl":          "[identity]\ntoken_ttl = \"soon\"\n",
		"negative ttl": "[identity]\ntoken_ttl = \"-1h\"\n",
		"log level":    "[logging]\nlevel = \"loud\"\n",
		"bad toml":     "[database\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/flare.db")); err == nil {
				t.Fatal("expected Load() error")
			}
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flare", "config.toml")
	if err := EnsureConfigDir(path); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Fatalf("expected config dir to exist, err = %v", err)
	}
}
