// Package source fetches the rows a migration reads: local csv and json
// files, and HTTP endpoints whose descriptors may be templated on the rows of
// earlier named sources.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/rdm/internal/expr"
	"github.com/leapstack-labs/rdm/internal/manifest"
	"github.com/leapstack-labs/rdm/internal/rows"
)

// Fetcher reads sources. Relative file paths resolve against Dir.
type Fetcher struct {
	Dir    string
	Client *Client
	Logger *slog.Logger
}

// NewFetcher returns a Fetcher with a default HTTP client.
func NewFetcher(dir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{Dir: dir, Client: NewClient(ClientConfig{}), Logger: logger}
}

// Fetch reads one source as is, without template expansion.
func (f *Fetcher) Fetch(ctx context.Context, src manifest.Source) ([]rows.Row, error) {
	kind, err := src.Kind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case manifest.SourceFile:
		return readFile(f.Dir, src.File)
	case manifest.SourceHTTP:
		client := f.Client
		if client == nil {
			client = NewClient(ClientConfig{})
		}
		return fetchHTTP(ctx, client, f.logger(), src.HTTP)
	default:
		return nil, fmt.Errorf("unsupported source kind %s", kind)
	}
}

// FetchAll reads the named sources in declaration order, each one expanded
// against the environment and the sources before it, then the input source
// expanded against all of them. It returns the input rows.
func (f *Fetcher) FetchAll(ctx context.Context, m *manifest.Manifest, env expr.Env) ([]rows.Row, error) {
	scope := expr.Scope{Env: env, Sources: make(map[string][]expr.Row, len(m.Sources))}

	for _, named := range m.Sources {
		out, err := f.fetchExpanded(ctx, named.Source, scope)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", named.Name, err)
		}
		f.logger().Info("source fetched", slog.String("source", named.Name), slog.Int("rows", len(out)))
		scope.Sources[named.Name] = out
	}

	out, err := f.fetchExpanded(ctx, m.Input, scope)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	f.logger().Info("input fetched", slog.Int("rows", len(out)))
	return out, nil
}

func (f *Fetcher) fetchExpanded(ctx context.Context, src manifest.Source, scope expr.Scope) ([]rows.Row, error) {
	expanded, err := Expand(src, scope)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, expanded)
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}
