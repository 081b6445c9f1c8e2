package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the embedded session store's configuration. Unlike the
// teacher's pooled Postgres config, an embedded sqlite store has a
// single connection (§4.1: "a single-connection embedded store with
// per-write commits is sufficient").
type Config struct {
	Path            string
	MaxOpenConns    int
	BusyTimeoutMs   int
}

// LoadConfigFromEnv loads the session store configuration from
// environment variables, following the teacher's getEnvOrDefault /
// Validate pattern.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Path:          getEnvOrDefault("SESSION_DB_PATH", "data/sessions.db"),
		MaxOpenConns:  1,
		BusyTimeoutMs: 5000,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration and ensures the parent directory of
// Path exists, creating it if necessary.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("SESSION_DB_PATH must not be empty")
	}
	if dir := filepath.Dir(c.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating session db directory: %w", err)
		}
	}
	return nil
}

// DSN returns the go-sqlite3 data source name, with a busy timeout so
// concurrent callers (browser client, voice-agent bridge, background
// extractors) block briefly rather than failing outright on contention.
func (c Config) DSN() string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", c.Path, c.BusyTimeoutMs)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
