// Package config loads rdm CLI settings from defaults, an optional config
// file, RDM_ environment variables and command-line flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	Verbose      bool        `koanf:"verbose"`
	OutputFormat string      `koanf:"output"`
	DatabaseURL  string      `koanf:"database_url"`
	Print        PrintConfig `koanf:"print"`
	HTTP         HTTPConfig  `koanf:"http"`
}

// PrintConfig enables per-run diagnostics, logged at Info level.
type PrintConfig struct {
	SQL      bool `koanf:"sql"`
	Values   bool `koanf:"values"`
	Columns  bool `koanf:"columns"`
	Rows     bool `koanf:"rows"`
	Affected bool `koanf:"affected"`
}

// HTTPConfig tunes the client used by http sources.
type HTTPConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// Default configuration values.
const (
	DefaultOutput     = "auto" // TTY=text, otherwise markdown
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	EnvPrefix         = "RDM_"
)

// configFileNames are looked up in the working directory when --config is
// not given.
var configFileNames = []string{"rdm.config.yaml", "rdm.config.yml"}
