package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/leapstack-labs/rdm/pkg/adapter"
)

// DefaultSchema is used for tables given without a schema.
const DefaultSchema = "public"

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("target", describe(cfg)))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", translate(err))
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// Execute runs the statement and turns server errors into *adapter.DatabaseError.
func (a *Adapter) Execute(ctx context.Context, sqlStr string, params []any) (int64, error) {
	start := time.Now()
	affected, err := a.BaseSQLAdapter.Execute(ctx, sqlStr, params)
	if err != nil {
		return 0, translate(err)
	}
	a.Logger.Debug("statement executed",
		slog.Int("params", len(params)),
		slog.Int64("rows", affected),
		slog.Duration("duration", time.Since(start)))
	return affected, nil
}

// ColumnTypes reads column types from information_schema.
func (a *Adapter) ColumnTypes(ctx context.Context, tables []string) (adapter.ColumnTypes, error) {
	return a.ColumnTypesCommon(ctx, tables, DefaultSchema)
}

// translate wraps a PostgreSQL server error, keeping the original in the chain.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return &adapter.DatabaseError{
		Code:       pgErr.Code,
		Message:    pgErr.Message,
		Detail:     pgErr.Detail,
		Constraint: pgErr.ConstraintName,
		Err:        err,
	}
}

// buildPostgresDSN constructs a PostgreSQL connection string. A URL is passed
// through untouched; otherwise a key=value DSN is built from the fields.
func buildPostgresDSN(cfg adapter.Config) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// describe renders the connection target without credentials, for logs.
func describe(cfg adapter.Config) string {
	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return "<unparseable url>"
		}
		return u.Redacted()
	}
	return fmt.Sprintf("%s/%s", cfg.Host, cfg.Database)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
