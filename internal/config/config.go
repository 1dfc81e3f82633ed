package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the full runtime configuration. Environment variables override file values.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Identity  IdentityConfig  `toml:"identity"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

type DatabaseConfig struct {
	Path string `toml:"path" env:"FLARE_DB_PATH"`
}

type ServerConfig struct {
	HTTPBind        string `toml:"http_bind" env:"FLARE_HTTP_BIND"`
	APIEndpoint     string `toml:"api_endpoint" env:"FLARE_API_ENDPOINT"`
	MCPEndpoint     string `toml:"mcp_endpoint" env:"FLARE_MCP_ENDPOINT"`
	ShutdownTimeout string `toml:"shutdown_timeout" env:"FLARE_SHUTDOWN_TIMEOUT"`
}

type IdentityConfig struct {
	Issuer     string `toml:"issuer" env:"FLARE_TOKEN_ISSUER"`
	Audience   string `toml:"audience" env:"FLARE_TOKEN_AUDIENCE"`
	SigningKey string `toml:"signing_key" env:"FLARE_SIGNING_KEY"`
	TokenTTL   string `toml:"token_ttl" env:"FLARE_TOKEN_TTL"`
}

type LoggingConfig struct {
	Level   string        `toml:"level" env:"FLARE_LOG_LEVEL"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled" env:"FLARE_DEV_LOG"`
	Dir     string `toml:"dir" env:"FLARE_DEV_LOG_DIR"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint" env:"FLARE_OTEL_ENDPOINT"`
	Insecure     bool   `toml:"insecure" env:"FLARE_OTEL_INSECURE"`
	ServiceName  string `toml:"service_name" env:"FLARE_SERVICE_NAME"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			HTTPBind:        "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			ShutdownTimeout: "5s",
		},
		Identity: IdentityConfig{
			Issuer:   "flare",
			Audience: "flare-api",
			TokenTTL: "24h",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "flare",
		},
	}
}

// Load reads path over defaults, applies environment overrides, and validates the result.
// A missing or empty file leaves defaults in place.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		case len(content) > 0:
			if err := toml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode toml: %w", err)
			}
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from FLARE_* environment variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with '/': %q", name, endpoint)
		}
	}
	if _, err := c.Server.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Identity.TTL(); err != nil {
		return err
	}
	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

// ShutdownTimeoutDuration parses server.shutdown_timeout. Empty means five seconds.
func (s ServerConfig) ShutdownTimeoutDuration() (time.Duration, error) {
	return parsePositiveDuration("server.shutdown_timeout", s.ShutdownTimeout, 5*time.Second)
}

// TTL parses identity.token_ttl. Empty means 24 hours.
func (i IdentityConfig) TTL() (time.Duration, error) {
	return parsePositiveDuration("identity.token_ttl", i.TokenTTL, 24*time.Hour)
}

// parsePositiveDuration parses a Go duration string with a fallback for empty input.
func parsePositiveDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", field, raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", field)
	}
	return d, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
