package adapter

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Adapter)

	// schemes maps connection URL schemes to adapter types.
	schemes = map[string]string{
		"postgres":   "postgres",
		"postgresql": "postgres",
	}
)

// Register adds an adapter factory to the registry.
// Called by adapter implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an adapter factory by name.
func Get(name string) (func(*slog.Logger) Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// NewAdapter creates a new adapter instance based on config type. An empty
// type is inferred from the URL scheme.
// The logger parameter is passed to the adapter constructor (nil uses discard logger).
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	typ := cfg.Type
	if typ == "" && cfg.URL != "" {
		typ = TypeFromURL(cfg.URL)
	}
	if typ == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}

	factory, ok := Get(typ)
	if !ok {
		return nil, &UnknownAdapterError{
			Type:      typ,
			Available: ListAdapters(),
		}
	}
	return factory(logger), nil
}

// TypeFromURL returns the adapter type for a connection URL, or the raw
// scheme when no adapter claims it.
func TypeFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return ""
	}
	if typ, ok := schemes[u.Scheme]; ok {
		return typ
	}
	return u.Scheme
}

// ListAdapters returns all registered adapter names (sorted).
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an adapter type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
