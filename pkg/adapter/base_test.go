package adapter

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			assert.NoError(t, base.Close())
			assert.Nil(t, base.DB)
		})
	}
}

func TestBaseSQLAdapter_Execute(t *testing.T) {
	const stmt = "with cte__ as (select id from (values ($1), ($2)) as s(id)) select 1"

	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		params    []any
		affected  int64
		errMsg    string
	}{
		{
			name:    "execute without connection",
			setupDB: false,
			errMsg:  "database connection not established",
		},
		{
			name:    "execute with params",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(stmt)).
					WithArgs("1", "2").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			params:   []any{"1", "2"},
			affected: 1,
		},
		{
			name:    "execute with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnError(assert.AnError)
			},
			params: []any{"1", "2"},
			errMsg: "failed to execute SQL",
		},
		{
			name:    "driver without rows affected",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(stmt)).
					WillReturnResult(sqlmock.NewErrorResult(assert.AnError))
			},
			params: []any{"1", "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()

				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
				defer func() { assert.NoError(t, mock.ExpectationsWereMet()) }()
			}

			affected, err := base.Execute(context.Background(), stmt, tt.params)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.affected, affected)
		})
	}
}

func TestBaseSQLAdapter_ColumnTypesCommon(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	query := regexp.QuoteMeta(columnTypesQuery)
	mock.ExpectQuery(query).WithArgs("public", "users").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "integer").
			AddRow("name", "text"),
	)
	mock.ExpectQuery(query).WithArgs("sales", "orders").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("total", "numeric"),
	)
	mock.ExpectQuery(query).WithArgs("public", "missing").WillReturnRows(
		sqlmock.NewRows([]string{"column_name", "data_type"}),
	)

	base := &BaseSQLAdapter{DB: db}
	types, err := base.ColumnTypesCommon(context.Background(), []string{"users", "sales.orders", "missing"}, "public")
	require.NoError(t, err)

	assert.Equal(t, ColumnTypes{
		"users":        {"id": "integer", "name": "text"},
		"sales.orders": {"total": "numeric"},
	}, types)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_ColumnTypesCommon_Errors(t *testing.T) {
	base := &BaseSQLAdapter{}
	_, err := base.ColumnTypesCommon(context.Background(), []string{"users"}, "public")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection not established")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("information_schema").WillReturnError(assert.AnError)
	base.DB = db
	_, err = base.ColumnTypesCommon(context.Background(), []string{"users"}, "public")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table users")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestParseQualifiedName(t *testing.T) {
	tests := []struct {
		in, schema, name string
	}{
		{"users", "public", "users"},
		{"sales.orders", "sales", "orders"},
	}
	for _, tt := range tests {
		schema, name := ParseQualifiedName(tt.in, "public")
		assert.Equal(t, tt.schema, schema)
		assert.Equal(t, tt.name, name)
	}
}
