package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in a command context.
type loggerKey struct{}

// nestedPrefixes are the config sections whose flat env and flag names
// (print_sql, http-max-retries) map onto nested keys (print.sql).
var nestedPrefixes = []string{"print", "http"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile returns the explicit path, or the first config file found
// in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// keyFor turns a snake_case name into a config key, nesting known sections.
func keyFor(name string) string {
	for _, p := range nestedPrefixes {
		if rest, ok := strings.CutPrefix(name, p+"_"); ok {
			return p + "." + rest
		}
	}
	return name
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"verbose":          false,
		"output":           DefaultOutput,
		"database_url":     "",
		"http.timeout":     DefaultTimeout.String(),
		"http.max_retries": DefaultMaxRetries,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: RDM_DATABASE_URL -> database_url,
	// RDM_PRINT_SQL -> print.sql
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return keyFor(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags explicitly set on the command line
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return keyFor(strings.ReplaceAll(f.Name, "-", "_")), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.DatabaseURL = expandEnvVars(cfg.DatabaseURL)
	if cfg.HTTP.MaxRetries < 0 {
		return nil, fmt.Errorf("http.max_retries must not be negative, got %d", cfg.HTTP.MaxRetries)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the most recently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// NewLogger builds the CLI logger: text on w, Info level, Debug when verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns; unset variables are left as is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}
