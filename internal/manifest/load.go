package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "rdm.json"

// fileNames lists accepted manifest names in lookup order. JSON is a subset
// of YAML, so a single decoder handles all of them.
var fileNames = []string{FileName, "rdm.yaml", "rdm.yml"}

// ErrNotFound is returned when a directory has no manifest file.
var ErrNotFound = errors.New("manifest not found")

// Find returns the manifest path inside dir.
func Find(dir string) (string, error) {
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found in %s", ErrNotFound, FileName, dir)
}

// Load reads the manifest of the project in dir.
func Load(dir string) (*Manifest, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is the user's project directory
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	m.Dir = abs
	return m, nil
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("manifest is empty")
	}
	// Valid JSON never holds a raw tab inside a string, and YAML rejects tabs
	// used as indentation, so tabs in a JSON document are safe to widen.
	if trimmed[0] == '{' {
		data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if _, err := m.Input.Kind(); err != nil {
		return fmt.Errorf("input: %w", err)
	}

	seen := map[string]bool{BaseRelation: true}
	for i, s := range m.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: property \"name\" is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: name %q is already used", i, s.Name)
		}
		seen[s.Name] = true
		if _, err := s.Kind(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}

	if len(m.Output.TableSet()) == 0 {
		return fmt.Errorf("output: property \"tables\" is required")
	}
	for _, table := range m.Output.TableSet() {
		if table.Name == BaseRelation || strings.TrimSpace(table.Name) == "" {
			return fmt.Errorf("output: %q is not a valid table name", table.Name)
		}
	}
	return nil
}
