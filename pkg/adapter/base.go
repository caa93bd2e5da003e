package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Execute and column type lookups.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Execute runs a statement with positional parameters.
func (b *BaseSQLAdapter) Execute(ctx context.Context, sqlStr string, params []any) (int64, error) {
	if b.DB == nil {
		return 0, fmt.Errorf("database connection not established")
	}
	res, err := b.DB.ExecContext(ctx, sqlStr, params...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute SQL: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports it; the statement itself succeeded.
		return 0, nil
	}
	return affected, nil
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses defaultSchema if not specified.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if s, n, ok := strings.Cut(table, "."); ok {
		return s, n
	}
	return defaultSchema, table
}

const columnTypesQuery = `select column_name, data_type from information_schema.columns where table_schema = $1 and table_name = $2 order by ordinal_position`

// ColumnTypesCommon reads information_schema.columns once per table.
// Tables without columns (missing or not visible) are left out.
func (b *BaseSQLAdapter) ColumnTypesCommon(ctx context.Context, tables []string, defaultSchema string) (ColumnTypes, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	types := make(ColumnTypes, len(tables))
	for _, table := range tables {
		schema, name := ParseQualifiedName(table, defaultSchema)
		cols, err := b.tableColumnTypes(ctx, schema, name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		if len(cols) > 0 {
			types[table] = cols
		}
	}
	return types, nil
}

func (b *BaseSQLAdapter) tableColumnTypes(ctx context.Context, schema, table string) (map[string]string, error) {
	rows, err := b.DB.QueryContext(ctx, columnTypesQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		cols[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return cols, nil
}
