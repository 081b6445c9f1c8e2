// Package store implements the durable Session Store (§4.1): an
// embedded, single-connection sqlite database with narrow atomic write
// operations designed to avoid lost-update races between the browser
// client, the voice-agent bridge, and background extractors.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps the underlying *sql.DB connection to the embedded
// session store, having already applied all pending migrations.
type Client struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying connection, primarily for health checks.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// NewClient opens the embedded database at cfg.Path, applies pending
// migrations, and returns a ready Client. A single open connection is
// used throughout (§4.1: "a single-connection embedded store with
// per-write commits is sufficient"), which also sidesteps sqlite's
// single-writer limitation without needing external locking.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging session store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running session store migrations: %w", err)
	}

	return &Client{db: db, log: slog.Default().With("component", "store")}, nil
}

// runMigrations applies embedded schema migrations using golang-migrate,
// following the teacher's embed-and-apply-on-startup workflow
// (pkg/database/client.go) but against a sqlite3 source/driver pair
// instead of Postgres.
func runMigrations(db *sql.DB) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("checking embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found")
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite3 migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sessions", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	// Do not call m.Close(); it would close the shared *sql.DB via the
	// sqlite3 driver. Close only the source side.
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() && len(e.Name()) > 4 && e.Name()[len(e.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
