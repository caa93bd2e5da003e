package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/rdm/internal/testutil"
	"github.com/leapstack-labs/rdm/pkg/adapter"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name:     "url wins",
			config:   adapter.Config{URL: "postgres://app:secret@db:5432/app", Host: "ignored"},
			expected: "postgres://app:secret@db:5432/app",
		},
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name:     "defaults",
			config:   adapter.Config{Database: "mydb"},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestDescribe_HidesPassword(t *testing.T) {
	got := describe(adapter.Config{URL: "postgres://app:secret@db:5432/app"})
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "db:5432/app")
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a := New(testutil.NewTestLogger(t))
	a.DB = db
	return a, mock
}

func TestAdapter_Execute(t *testing.T) {
	a, mock := newMockAdapter(t)

	stmt := "with cte__ as (select id from (values ($1)) as s(id)), cte_users as (insert into users (id) select distinct on (cte__.id) cte__.id from cte__ on conflict (id) do nothing returning *) select 1"
	mock.ExpectExec(regexp.QuoteMeta(stmt)).WithArgs("1").WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := a.Execute(context.Background(), stmt, []any{"1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Execute_DatabaseError(t *testing.T) {
	a, mock := newMockAdapter(t)

	pgErr := &pgconn.PgError{
		Code:           "23505",
		Message:        `duplicate key value violates unique constraint "users_pkey"`,
		Detail:         "Key (id)=(1) already exists.",
		ConstraintName: "users_pkey",
	}
	mock.ExpectExec("insert into users").WillReturnError(pgErr)

	_, err := a.Execute(context.Background(), "insert into users (id) values ($1)", []any{"1"})
	require.Error(t, err)

	var dbErr *adapter.DatabaseError
	require.True(t, errors.As(err, &dbErr))
	assert.True(t, dbErr.UniqueViolation())
	assert.Equal(t, "users_pkey", dbErr.Constraint)
	assert.ErrorIs(t, err, pgErr)
}

func TestAdapter_Execute_OtherError(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec("select").WillReturnError(assert.AnError)

	_, err := a.Execute(context.Background(), "select 1", nil)
	require.Error(t, err)

	var dbErr *adapter.DatabaseError
	assert.False(t, errors.As(err, &dbErr))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAdapter_ColumnTypes(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery("information_schema.columns").WithArgs(DefaultSchema, "users").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "uuid").
			AddRow("created_at", "timestamp with time zone"),
	)

	types, err := a.ColumnTypes(context.Background(), []string{"users"})
	require.NoError(t, err)
	assert.Equal(t, adapter.ColumnTypes{
		"users": {"id": "uuid", "created_at": "timestamp with time zone"},
	}, types)
}

func TestAdapter_Registered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"))

	a, err := adapter.NewAdapter(adapter.Config{URL: "postgresql://localhost/app"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", a.DialectName())
}
