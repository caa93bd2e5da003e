package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/rdm/internal/expr"
	"github.com/leapstack-labs/rdm/internal/manifest"
	"github.com/leapstack-labs/rdm/internal/testutil"
	"github.com/leapstack-labs/rdm/pkg/adapter"
)

// fakeAdapter records executed statements.
type fakeAdapter struct {
	mu        sync.Mutex
	connected int
	closed    int
	cfg       adapter.Config
	execs     []string
	params    [][]any
	types     adapter.ColumnTypes
	execErr   error
}

func (f *fakeAdapter) Connect(_ context.Context, cfg adapter.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected++
	f.cfg = cfg
	return nil
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeAdapter) Execute(_ context.Context, sql string, params []any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return 0, f.execErr
	}
	f.execs = append(f.execs, sql)
	f.params = append(f.params, params)
	return 2, nil
}

func (f *fakeAdapter) ColumnTypes(_ context.Context, _ []string) (adapter.ColumnTypes, error) {
	return f.types, nil
}

func (f *fakeAdapter) DialectName() string { return "fake" }

func (f *fakeAdapter) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

const usersManifest = `{
	"input": {"file": {"path": "users.csv"}},
	"output": {
		"database": {
			"url": "postgres://${DB_HOST}/app",
			"tables": {
				"users": {
					"set": {"id": "_.id", "name": "_.name"},
					"strategy": "insert",
					"uniqueConstraint": ["id"]
				}
			}
		}
	}
}`

func newProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteFiles(t, t.TempDir(), map[string]string{
		manifest.FileName: usersManifest,
		"users.csv":       "id,name\n1,Ann\n2,Bo\n",
	})
}

func newEngine(t *testing.T, dir string, db *fakeAdapter) *Engine {
	t.Helper()
	e, err := New(Config{
		Dir:     dir,
		Env:     expr.Env{"DB_HOST": "db.internal"},
		Adapter: db,
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNew_MissingManifest(t *testing.T) {
	_, err := New(Config{Dir: t.TempDir()})
	assert.ErrorIs(t, err, manifest.ErrNotFound)
}

func TestEngine_Plan(t *testing.T) {
	db := &fakeAdapter{}
	e := newEngine(t, newProject(t), db)

	plan, err := e.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, plan.Order)
	assert.Equal(t, []any{"1", "Ann", "2", "Bo"}, plan.Params)
	assert.Zero(t, db.connected, "plan never connects")
}

func TestEngine_Apply(t *testing.T) {
	db := &fakeAdapter{types: adapter.ColumnTypes{"users": {"id": "integer"}}}
	e := newEngine(t, newProject(t), db)

	res, err := e.Apply(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, int64(2), res.Affected)
	assert.Equal(t, 1, db.connected)
	assert.Equal(t, "postgres://db.internal/app", db.cfg.URL)
	require.Len(t, db.execs, 1)
	assert.Equal(t, res.Plan.SQL, db.execs[0])
	assert.Contains(t, db.execs[0], "$1::integer")

	// A second run reuses the connection.
	_, err = e.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, db.connected)

	require.NoError(t, e.Close())
	assert.Equal(t, 1, db.closed)
}

func TestEngine_Apply_ExecuteError(t *testing.T) {
	db := &fakeAdapter{execErr: &adapter.DatabaseError{Code: "23505", Message: "duplicate key"}}
	e := newEngine(t, newProject(t), db)

	_, err := e.Apply(context.Background())
	var dbErr *adapter.DatabaseError
	require.True(t, errors.As(err, &dbErr))
	assert.True(t, dbErr.UniqueViolation())
}

func TestEngine_Apply_NoDatabase(t *testing.T) {
	dir := testutil.WriteFiles(t, t.TempDir(), map[string]string{
		manifest.FileName: `{"input": {"file": {"path": "users.csv"}}, "output": {"tables": {"users": {"set": {"id": "_.id"}, "strategy": "insert", "uniqueConstraint": ["id"]}}}}`,
		"users.csv":       "id\n1\n",
	})
	e, err := New(Config{Dir: dir})
	require.NoError(t, err)

	_, err = e.Apply(context.Background())
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestEngine_PrintOptions(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	e, err := New(Config{
		Dir:     newProject(t),
		Env:     expr.Env{},
		Adapter: &fakeAdapter{},
		Logger:  logger,
		Print:   PrintOptions{SQL: true, Values: true, Columns: true, Rows: true, Affected: true},
	})
	require.NoError(t, err)

	_, err = e.Apply(context.Background())
	require.NoError(t, err)

	out := logs.String()
	for _, msg := range []string{"query sql", "query values", "dataset columns", "dataset rows", "affected rows", `"run_id"`} {
		assert.Contains(t, out, msg)
	}
}

func TestEngine_Reload(t *testing.T) {
	dir := newProject(t)
	e := newEngine(t, dir, &fakeAdapter{})

	testutil.WriteFiles(t, dir, map[string]string{
		manifest.FileName: strings.Replace(usersManifest, `"insert"`, `"upsert"`, 1),
	})
	require.NoError(t, e.Reload())

	table, ok := e.Manifest().Output.TableSet().Get("users")
	require.True(t, ok)
	assert.Equal(t, manifest.StrategyUpsert, table.Strategy)

	testutil.WriteFiles(t, dir, map[string]string{manifest.FileName: "{"})
	assert.Error(t, e.Reload())
	assert.Equal(t, manifest.StrategyUpsert, e.Manifest().Output.TableSet()[0].Strategy, "failed reload keeps the old manifest")
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"*/5 * * * *", "0 */5 * * * *", "@hourly"} {
		_, err := ParseSchedule(spec)
		assert.NoError(t, err, spec)
	}
	_, err := ParseSchedule("every now and then")
	assert.ErrorContains(t, err, "invalid cron expression")
}

func TestEngine_Schedule(t *testing.T) {
	db := &fakeAdapter{}
	e := newEngine(t, newProject(t), db)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Schedule(ctx, "@every 1s") }()

	require.Eventually(t, func() bool { return db.execCount() > 0 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestEngine_Schedule_InvalidSpec(t *testing.T) {
	e := newEngine(t, newProject(t), &fakeAdapter{})
	assert.Error(t, e.Schedule(context.Background(), "nope"))
}

func TestEngine_Watch(t *testing.T) {
	dir := newProject(t)
	db := &fakeAdapter{}
	e := newEngine(t, dir, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var results []*Result
	done := make(chan error, 1)
	go func() {
		done <- e.Watch(ctx, 20*time.Millisecond, func(r *Result, err error) {
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool { return db.execCount() == 1 }, 5*time.Second, 20*time.Millisecond)

	testutil.WriteFiles(t, dir, map[string]string{"users.csv": "id,name\n1,Ann\n2,Bo\n3,Cy\n"})
	require.Eventually(t, func() bool { return db.execCount() >= 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	last := results[len(results)-1]
	assert.Len(t, last.Plan.Params, 6)
}
