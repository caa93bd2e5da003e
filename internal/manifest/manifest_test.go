package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersManifest = `{
	"input": { "file": { "path": "users.csv" } },
	"output": {
		"alias": { "$u": "_.user" },
		"database": {
			"url": "postgres://localhost/app",
			"tables": {
				"users": {
					"set": { "id": "_.id", "name": "$u.name", "email": "_.email" },
					"strategy": "upsert",
					"uniqueConstraint": ["id"]
				},
				"accounts": {
					"set": { "user_id": "users.id", "kind": "{{ 'basic' }}" },
					"strategy": "insert",
					"failIfExists": true,
					"uniqueConstraint": ["user_id"]
				}
			}
		}
	},
	"cron": "*/5 * * * *"
}`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(usersManifest))
	require.NoError(t, err)

	kind, err := m.Input.Kind()
	require.NoError(t, err)
	assert.Equal(t, SourceFile, kind)
	assert.Equal(t, "users.csv", m.Input.File.Path)
	assert.Equal(t, "*/5 * * * *", m.Cron)
	assert.Equal(t, "postgres://localhost/app", m.Output.DatabaseURL())

	tables := m.Output.TableSet()
	require.Len(t, tables, 2)
	assert.Equal(t, []string{"users", "accounts"}, tables.Names())

	users, ok := tables.Get("users")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "email"}, users.Set.Columns())
	assert.Equal(t, StrategyUpsert, users.Strategy)
	assert.Equal(t, []string{"id"}, users.UniqueConstraint)

	accounts, _ := tables.Get("accounts")
	assert.True(t, accounts.FailIfExists)
	expr, ok := accounts.Set.Get("kind")
	require.True(t, ok)
	assert.Equal(t, "{{ 'basic' }}", expr)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		errMsg string
	}{
		{
			name:   "empty document",
			doc:    "  ",
			errMsg: "empty",
		},
		{
			name:   "no input",
			doc:    `{"output": {"tables": {"t": {"set": {"a": "_.a"}}}}}`,
			errMsg: "exactly one value for input",
		},
		{
			name:   "two inputs",
			doc:    `{"input": {"file": {"path": "a.csv"}, "http": {"url": "http://x"}}, "output": {"tables": {"t": {"set": {"a": "_.a"}}}}}`,
			errMsg: "got both",
		},
		{
			name:   "no tables",
			doc:    `{"input": {"file": {"path": "a.csv"}}, "output": {}}`,
			errMsg: `"tables" is required`,
		},
		{
			name:   "base relation as table name",
			doc:    `{"input": {"file": {"path": "a.csv"}}, "output": {"tables": {"_": {"set": {"a": "_.a"}}}}}`,
			errMsg: "not a valid table name",
		},
		{
			name:   "unknown field",
			doc:    `{"input": {"file": {"path": "a.csv"}}, "outputs": {}}`,
			errMsg: "invalid manifest",
		},
		{
			name:   "non string assignment",
			doc:    `{"input": {"file": {"path": "a.csv"}}, "output": {"tables": {"t": {"set": {"a": ["x"]}}}}}`,
			errMsg: "string expression",
		},
		{
			name:   "unnamed source",
			doc:    `{"input": {"file": {"path": "a.csv"}}, "sources": [{"file": {"path": "b.csv"}}], "output": {"tables": {"t": {"set": {"a": "_.a"}}}}}`,
			errMsg: `"name" is required`,
		},
		{
			name:   "source named like the base relation",
			doc:    `{"input": {"file": {"path": "a.csv"}}, "sources": [{"name": "_", "file": {"path": "b.csv"}}], "output": {"tables": {"t": {"set": {"a": "_.a"}}}}}`,
			errMsg: "already used",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParse_TabIndentedJSON(t *testing.T) {
	doc := "{\n\t\"input\": {\"file\": {\"path\": \"a.csv\"}},\n\t\"output\": {\n\t\t\"tables\": {\"t\": {\"set\": {\"a\": \"_.a\"}}}\n\t}\n}"
	m, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, m.Output.TableSet().Names())
}

func TestParse_HTTPSource(t *testing.T) {
	doc := `
input:
  http:
    url:
      - https://api.example.com/a
      - https://api.example.com/b
    method: get
    responseType: json
    headers:
      Authorization: env.TOKEN
sources:
  - name: ids
    http:
      url: https://api.example.com/ids
      method: get
      responseType: csv
output:
  tables:
    items:
      set:
        id: _.id
      strategy: insert
      uniqueConstraint: [id]
`
	m, err := Parse([]byte(doc))
	require.NoError(t, err)

	kind, err := m.Input.Kind()
	require.NoError(t, err)
	assert.Equal(t, SourceHTTP, kind)
	assert.Equal(t, StringList{"https://api.example.com/a", "https://api.example.com/b"}, m.Input.HTTP.URL)
	assert.Equal(t, "env.TOKEN", m.Input.HTTP.Headers["Authorization"])

	require.Len(t, m.Sources, 1)
	assert.Equal(t, "ids", m.Sources[0].Name)
	assert.Equal(t, StringList{"https://api.example.com/ids"}, m.Sources[0].HTTP.URL)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(usersManifest), 0600))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(m.Dir))
	assert.Equal(t, []string{"users", "accounts"}, m.Output.TableSet().Names())
}

func TestResolveAliases(t *testing.T) {
	m, err := Parse([]byte(usersManifest))
	require.NoError(t, err)

	resolved := m.ResolveAliases()

	users, _ := resolved.Output.TableSet().Get("users")
	name, _ := users.Set.Get("name")
	assert.Equal(t, "_.user.name", name)

	// untouched expressions stay as they are
	id, _ := users.Set.Get("id")
	assert.Equal(t, "_.id", id)

	// the loaded manifest is not modified
	original, _ := m.Output.TableSet().Get("users")
	name, _ = original.Set.Get("name")
	assert.Equal(t, "$u.name", name)
}

func TestResolveAlias(t *testing.T) {
	aliases := map[string]string{"$track": "_.data.items.track"}

	tests := []struct {
		in   string
		want string
	}{
		{"$track.name", "_.data.items.track.name"},
		{"$track", "_.data.items.track"},
		{"_.$track.name", "_.$track.name"},
		{"other.name", "other.name"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveAlias(tt.in, aliases))
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	m, err := Parse([]byte(usersManifest))
	require.NoError(t, err)

	c := m.Clone()
	c.Output.Database.Tables[0].Set[0].Expr = "changed"
	c.Output.Database.Tables[0].UniqueConstraint[0] = "changed"
	c.Input.File.Path = "changed"

	users, _ := m.Output.TableSet().Get("users")
	assert.Equal(t, "_.id", users.Set[0].Expr)
	assert.Equal(t, "id", users.UniqueConstraint[0])
	assert.Equal(t, "users.csv", m.Input.File.Path)
}

func TestStrategy_Valid(t *testing.T) {
	assert.True(t, StrategyInsert.Valid())
	assert.True(t, StrategyUpdate.Valid())
	assert.True(t, StrategyUpsert.Valid())
	assert.False(t, Strategy("merge").Valid())
	assert.False(t, Strategy("").Valid())
}
