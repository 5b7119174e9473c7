// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the load-order server.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// SchemaPaths lists ApiSchema files or directories. SCHEMA_PATH accepts a
	// comma-separated list; the config file's schemaPaths are appended.
	SchemaPaths []string
	// StrictSchema rejects unknown fields in schema documents.
	StrictSchema bool

	// Reload
	SchemaWatch      bool          // reload when schema files change
	SchemaReloadCron string        // cron schedule for periodic reload (optional)
	WatchDebounce    time.Duration // delay before a file change triggers reload (default 500ms)

	// Rate limiting for management routes
	RateLimitRPS   float64 // sustained requests per second (default 1)
	RateLimitBurst int     // burst capacity (default 5)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// ConfigFile is the optional YAML engine configuration file.
	ConfigFile string
	// Engine holds the parsed contents of ConfigFile.
	Engine EngineFile

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to an slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables and, when
// CONFIG_FILE is set, the YAML engine file it names.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Env:              os.Getenv("ENV"),
		SchemaPaths:      splitList(os.Getenv("SCHEMA_PATH")),
		StrictSchema:     parseBoolEnvDefault("SCHEMA_STRICT", false),
		SchemaWatch:      parseBoolEnvDefault("SCHEMA_WATCH", false),
		SchemaReloadCron: strings.TrimSpace(os.Getenv("SCHEMA_RELOAD_CRON")),
		ConfigFile:       os.Getenv("CONFIG_FILE"),
	}

	if v := os.Getenv("SCHEMA_WATCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SCHEMA_WATCH_DEBOUNCE: %w", err)
		}
		cfg.WatchDebounce = d
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	if cfg.ConfigFile != "" {
		ef, err := LoadEngineFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.Engine = *ef
		cfg.SchemaPaths = append(cfg.SchemaPaths, ef.SchemaPaths...)
		if ef.Watch != nil && os.Getenv("SCHEMA_WATCH") == "" {
			cfg.SchemaWatch = *ef.Watch
		}
		if ef.ReloadCron != "" && cfg.SchemaReloadCron == "" {
			cfg.SchemaReloadCron = ef.ReloadCron
		}
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = 500 * time.Millisecond
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 1
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 5
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if len(cfg.SchemaPaths) == 0 {
		return nil, fmt.Errorf("SCHEMA_PATH or schemaPaths in CONFIG_FILE must be set")
	}
	if cfg.SchemaWatch && cfg.SchemaReloadCron != "" {
		cfg.Warnings = append(cfg.Warnings, "both SCHEMA_WATCH and SCHEMA_RELOAD_CRON are set; unchanged schemas are not republished")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return compactNonEmpty(parts)
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
