package sqlgen

import (
	"regexp"
	"strconv"
	"strings"
)

// reservedWords are PostgreSQL keywords that cannot appear as bare identifiers.
var reservedWords = toSet(
	"user", "order", "group", "table", "select", "from", "where", "index",
	"all", "and", "any", "array", "as", "asc", "asymmetric", "authorization",
	"between", "binary", "both", "case", "cast", "check", "collate", "column",
	"constraint", "create", "cross", "current_catalog", "current_date",
	"current_role", "current_schema", "current_time", "current_timestamp",
	"current_user", "default", "deferrable", "desc", "distinct", "do", "else",
	"end", "except", "false", "fetch", "for", "foreign", "freeze", "full",
	"grant", "having", "ilike", "in", "initially", "inner", "intersect",
	"into", "is", "isnull", "join", "lateral", "leading", "left", "like",
	"limit", "localtime", "localtimestamp", "natural", "not", "notnull",
	"null", "offset", "on", "only", "or", "outer", "overlaps", "placing",
	"primary", "references", "returning", "right", "session_user", "similar",
	"some", "symmetric", "then", "to", "trailing", "true", "union", "unique",
	"using", "variadic", "verbose", "when", "window", "with",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var bareIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsReservedWord reports whether word needs quoting when used as an identifier.
func IsReservedWord(word string) bool {
	_, ok := reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdent renders name as an identifier. Simple lower-case names that are
// not reserved stay bare; anything else is double-quoted with embedded quotes
// doubled, which also preserves case and dots inside flattened column paths.
func QuoteIdent(name string) string {
	if bareIdent.MatchString(name) && !IsReservedWord(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteTable renders a possibly schema-qualified table name.
func QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// QuoteString renders s as a SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Placeholder returns the positional parameter marker for a 1-based index.
func Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = QuoteIdent(n)
	}
	return out
}
