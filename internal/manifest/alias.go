package manifest

import "strings"

// ResolveAliases returns a copy of the manifest where every assignment whose
// first segment names an output.alias key is rewritten with the alias target.
// For example, with alias {"$track": "_.data.items.track"} the expression
// "$track.name" becomes "_.data.items.track.name".
//
// The receiver is never modified.
func (m *Manifest) ResolveAliases() *Manifest {
	c := m.Clone()
	if len(m.Output.Alias) == 0 {
		return c
	}

	rewrite := func(tables Tables) {
		for i := range tables {
			for j, as := range tables[i].Set {
				tables[i].Set[j].Expr = resolveAlias(as.Expr, m.Output.Alias)
			}
		}
	}
	rewrite(c.Output.Tables)
	if c.Output.Database != nil {
		rewrite(c.Output.Database.Tables)
	}
	return c
}

func resolveAlias(expr string, aliases map[string]string) string {
	head, rest, dotted := strings.Cut(expr, ".")
	target, ok := aliases[head]
	if !ok {
		return expr
	}
	if !dotted {
		return target
	}
	return target + "." + rest
}
