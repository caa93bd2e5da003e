package source

import (
	"fmt"
	"maps"

	"github.com/leapstack-labs/rdm/internal/expr"
	"github.com/leapstack-labs/rdm/internal/manifest"
)

// Expand evaluates every string of a source descriptor against scope.
// A URL evaluating to several values becomes several URLs; any other field
// takes the values joined by commas.
func Expand(src manifest.Source, scope expr.Scope) (manifest.Source, error) {
	var out manifest.Source

	if src.File != nil {
		path, err := evalOne(src.File.Path, scope)
		if err != nil {
			return out, fmt.Errorf("path: %w", err)
		}
		out.File = &manifest.FileSource{Path: path}
	}

	if src.HTTP != nil {
		h := *src.HTTP
		h.URL = nil
		for _, raw := range src.HTTP.URL {
			v, err := expr.Evaluate(raw, scope)
			if err != nil {
				return out, fmt.Errorf("url: %w", err)
			}
			h.URL = append(h.URL, v.Items...)
		}

		var err error
		if h.Headers, err = evalMap(src.HTTP.Headers, scope); err != nil {
			return out, fmt.Errorf("headers: %w", err)
		}
		if h.Params, err = evalMap(src.HTTP.Params, scope); err != nil {
			return out, fmt.Errorf("params: %w", err)
		}
		if h.Body, err = evalMap(src.HTTP.Body, scope); err != nil {
			return out, fmt.Errorf("body: %w", err)
		}
		out.HTTP = &h
	}
	return out, nil
}

func evalOne(s string, scope expr.Scope) (string, error) {
	v, err := expr.Evaluate(s, scope)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func evalMap(in map[string]string, scope expr.Scope) (map[string]string, error) {
	if in == nil {
		return nil, nil
	}
	out := maps.Clone(in)
	for k, v := range in {
		s, err := evalOne(v, scope)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}
