// Package expr classifies and evaluates the assignment expressions found in
// a manifest.
//
// Table assignments are classified once per compile: a literal template is
// passed through as SQL, a reference names a relation and a column path, and
// an env reference is read from an injected environment. Source descriptors
// use the richer Evaluate, which also understands arithmetic and string
// concatenation over earlier source rows.
package expr

import (
	"os"
	"regexp"
	"strings"
)

// EnvSource is the reserved relation name for environment lookups.
const EnvSource = "env"

// Literal template markers. The text between them is emitted verbatim.
const (
	LiteralOpen  = "{{"
	LiteralClose = "}}"
)

// Kind is the classification of an expression.
type Kind int

// Kind constants.
const (
	KindOpaque Kind = iota
	KindLiteral
	KindReference
	KindEnvRef
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindReference:
		return "reference"
	case KindEnvRef:
		return "env"
	default:
		return "opaque"
	}
}

// Expr is a classified assignment expression.
//
// For KindLiteral and KindOpaque, Text holds the SQL/text to emit.
// For KindReference, Source is the relation and Path the column path.
// For KindEnvRef, Path is the variable name.
type Expr struct {
	Kind   Kind
	Text   string
	Source string
	Path   string
}

// IsReference reports whether e points at a relation column.
func (e Expr) IsReference() bool { return e.Kind == KindReference }

// References reports whether e is a reference into the given relation.
func (e Expr) References(source string) bool {
	return e.Kind == KindReference && e.Source == source
}

// String renders the expression back into manifest syntax.
func (e Expr) String() string {
	switch e.Kind {
	case KindLiteral:
		return LiteralOpen + " " + e.Text + " " + LiteralClose
	case KindReference:
		return e.Source + "." + e.Path
	case KindEnvRef:
		return EnvSource + "." + e.Path
	default:
		return e.Text
	}
}

// referencePattern matches <identifier>.<segment>[.<segment>...]. Identifiers
// may carry '$' so unresolved aliases still classify as references.
var referencePattern = regexp.MustCompile(`^([A-Za-z_$][\w$]*)\.([\w$-]+(?:\.[\w$-]+)*)$`)

// Classify sorts an expression into exactly one Kind. It is pure: the same
// input always yields the same result.
func Classify(s string) Expr {
	trimmed := strings.TrimSpace(s)

	if inner, ok := literalText(trimmed); ok {
		return Expr{Kind: KindLiteral, Text: inner}
	}

	if m := referencePattern.FindStringSubmatch(trimmed); m != nil {
		if m[1] == EnvSource {
			return Expr{Kind: KindEnvRef, Path: m[2]}
		}
		return Expr{Kind: KindReference, Source: m[1], Path: m[2]}
	}

	return Expr{Kind: KindOpaque, Text: s}
}

func literalText(s string) (string, bool) {
	if !strings.HasPrefix(s, LiteralOpen) || !strings.HasSuffix(s, LiteralClose) {
		return "", false
	}
	if len(s) < len(LiteralOpen)+len(LiteralClose) {
		return "", false
	}
	return strings.TrimSpace(s[len(LiteralOpen) : len(s)-len(LiteralClose)]), true
}

// Env is an injected environment. A nil Env resolves every name to "".
type Env map[string]string

// Get returns the value of name, or "" when it is not set.
func (e Env) Get(name string) string {
	return e[name]
}

// OSEnv snapshots the process environment.
func OSEnv() Env {
	env := make(Env)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
