package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/rdm/internal/manifest"
	"github.com/leapstack-labs/rdm/internal/rows"
)

const utf8BOM = "\uFEFF"

// readFile loads a .csv or .json file. Relative paths are resolved against dir.
func readFile(dir string, f *manifest.FileSource) ([]rows.Row, error) {
	if f.Path == "" {
		return nil, errors.New(`property "path" is required for a file source`)
	}

	path := f.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case manifest.FormatCSV, manifest.FormatJSON:
	default:
		return nil, fmt.Errorf("file %s: dataset type %q not supported (expected csv or json)", f.Path, format)
	}

	file, err := os.Open(path) //nolint:gosec // path comes from the user's manifest
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = file.Close() }()

	out, err := decode(format, file)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", f.Path, err)
	}
	return out, nil
}

// decode parses a csv or json payload into rows.
func decode(format string, r io.Reader) ([]rows.Row, error) {
	switch format {
	case manifest.FormatCSV:
		return ParseCSV(r)
	case manifest.FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return rows.FlattenJSON(data)
	default:
		return nil, fmt.Errorf("response type must be either csv or json, got %q", format)
	}
}

// ParseCSV reads a header line followed by records. Short records only carry
// the columns they have, so the row projector can drop them.
func ParseCSV(r io.Reader) ([]rows.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []rows.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	out := []rows.Row{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		row := make(rows.Row, len(record))
		for i, v := range record {
			if i < len(header) {
				row[header[i]] = v
			}
		}
		out = append(out, row)
	}
}
