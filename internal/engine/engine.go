// Package engine runs a migration project: it loads the manifest, fetches the
// input rows, compiles them into one statement and executes it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/leapstack-labs/rdm/internal/expr"
	"github.com/leapstack-labs/rdm/internal/manifest"
	"github.com/leapstack-labs/rdm/internal/source"
	"github.com/leapstack-labs/rdm/pkg/adapter"
)

// ErrNoDatabase is returned by Apply when neither the config nor the manifest
// names a database.
var ErrNoDatabase = errors.New("no database configured: set output.database.url or --database-url")

// PrintOptions turns on Info-level diagnostics for each run.
type PrintOptions struct {
	SQL      bool
	Values   bool
	Columns  bool
	Rows     bool
	Affected bool
}

// Config holds engine configuration.
type Config struct {
	// Dir is the project directory holding the manifest.
	Dir string
	// DatabaseURL overrides output.database.url when set.
	DatabaseURL string
	// Env resolves env.NAME expressions. Nil reads the process environment.
	Env   expr.Env
	Print PrintOptions
	HTTP  source.ClientConfig
	// Adapter replaces the registry lookup. The engine still connects it.
	Adapter adapter.Adapter
	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// Engine orchestrates runs of one project.
type Engine struct {
	// Database adapter, connected on first Apply.
	db          adapter.Adapter
	dbConnected bool
	dbMu        sync.Mutex

	// Guards manifest, which Reload swaps.
	mu       sync.RWMutex
	manifest *manifest.Manifest

	cfg     Config
	env     expr.Env
	fetcher *source.Fetcher
	logger  *slog.Logger
}

// New loads the manifest in cfg.Dir. The database is not touched until Apply.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	logger.Debug("initializing engine", "dir", cfg.Dir)

	m, err := manifest.Load(cfg.Dir)
	if err != nil {
		return nil, err
	}

	env := cfg.Env
	if env == nil {
		env = expr.OSEnv()
	}

	fetcher := source.NewFetcher(m.Dir, logger)
	fetcher.Client = source.NewClient(cfg.HTTP)

	return &Engine{
		db:       cfg.Adapter,
		manifest: m,
		cfg:      cfg,
		env:      env,
		fetcher:  fetcher,
		logger:   logger,
	}, nil
}

// Manifest returns the manifest currently in use.
func (e *Engine) Manifest() *manifest.Manifest {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.manifest
}

// Reload re-reads the manifest from disk. On error the previous manifest
// stays in use.
func (e *Engine) Reload() error {
	m, err := manifest.Load(e.cfg.Dir)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.manifest = m
	e.mu.Unlock()
	e.logger.Debug("manifest reloaded", "dir", m.Dir)
	return nil
}

// databaseURL resolves the connection URL, expanding ${VAR} references.
func (e *Engine) databaseURL() string {
	url := e.cfg.DatabaseURL
	if url == "" {
		url = e.Manifest().Output.DatabaseURL()
	}
	return os.Expand(url, e.env.Get)
}

// ensureDBConnected lazily connects to the database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	cfg := adapter.Config{URL: e.databaseURL()}
	if e.db == nil {
		if cfg.URL == "" {
			return ErrNoDatabase
		}
		db, err := adapter.NewAdapter(cfg, e.logger)
		if err != nil {
			return fmt.Errorf("failed to create database adapter: %w", err)
		}
		e.db = db
	}

	e.logger.Debug("connecting to database", "dialect", e.db.DialectName())
	if err := e.db.Connect(ctx, cfg); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	e.dbConnected = true
	return nil
}

// Close releases the database connection.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	e.dbMu.Lock()
	defer e.dbMu.Unlock()
	if e.db == nil || !e.dbConnected {
		return nil
	}
	e.dbConnected = false
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
