package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Expr
	}{
		{"env.PORT", Expr{Kind: KindEnvRef, Path: "PORT"}},
		{"orders.total", Expr{Kind: KindReference, Source: "orders", Path: "total"}},
		{"_.id", Expr{Kind: KindReference, Source: "_", Path: "id"}},
		{"_.album.artists.name", Expr{Kind: KindReference, Source: "_", Path: "album.artists.name"}},
		{"  users.id ", Expr{Kind: KindReference, Source: "users", Path: "id"}},
		{"$track.name", Expr{Kind: KindReference, Source: "$track", Path: "name"}},
		{"{{ now() }}", Expr{Kind: KindLiteral, Text: "now()"}},
		{"{{'basic'}}", Expr{Kind: KindLiteral, Text: "'basic'"}},
		{"{{ users.id }}", Expr{Kind: KindLiteral, Text: "users.id"}},
		{"plain", Expr{Kind: KindOpaque, Text: "plain"}},
		{"3.14", Expr{Kind: KindOpaque, Text: "3.14"}},
		{"https://api.example.com/x", Expr{Kind: KindOpaque, Text: "https://api.example.com/x"}},
		{"a.", Expr{Kind: KindOpaque, Text: "a."}},
		{"a + b", Expr{Kind: KindOpaque, Text: "a + b"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for _, in := range []string{"env.X", "a.b", "{{ 1 }}", "zzz"} {
		assert.Equal(t, Classify(in), Classify(in))
	}
}

func TestExpr_String(t *testing.T) {
	assert.Equal(t, "users.id", Classify("users.id").String())
	assert.Equal(t, "env.HOME", Classify("env.HOME").String())
	assert.Equal(t, "{{ now() }}", Classify("{{now()}}").String())
	assert.Equal(t, "x y", Classify("x y").String())
}

func TestExpr_References(t *testing.T) {
	e := Classify("users.id")
	assert.True(t, e.IsReference())
	assert.True(t, e.References("users"))
	assert.False(t, e.References("_"))
	assert.False(t, Classify("env.users").References("env"))
}

func TestEnv(t *testing.T) {
	var nilEnv Env
	assert.Equal(t, "", nilEnv.Get("MISSING"))

	env := Env{"A": "1"}
	assert.Equal(t, "1", env.Get("A"))
	assert.Equal(t, "", env.Get("B"))

	t.Setenv("RDM_EXPR_TEST", "yes")
	assert.Equal(t, "yes", OSEnv().Get("RDM_EXPR_TEST"))
}
