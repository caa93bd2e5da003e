// Package adapter defines the execution side of a migration: the contract a
// database adapter implements to run a compiled plan.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves from init().
package adapter

import (
	"context"
)

// Config describes a database connection. When URL is set it is used as is
// and the discrete fields are ignored.
type Config struct {
	Type     string
	URL      string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Options  map[string]string
}

// ColumnTypes maps table -> column -> database type name.
type ColumnTypes = map[string]map[string]string

// Adapter runs compiled statements against a database. Connection lifecycle
// belongs to the adapter: callers Connect once and Close when done.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Execute runs one statement with positional parameters and returns the
	// number of rows reported by the driver.
	Execute(ctx context.Context, sql string, params []any) (int64, error)

	// ColumnTypes reads the declared type of every column of the given tables.
	// Tables that do not exist are absent from the result.
	ColumnTypes(ctx context.Context, tables []string) (ColumnTypes, error)

	// DialectName returns the SQL dialect the adapter speaks.
	DialectName() string
}
