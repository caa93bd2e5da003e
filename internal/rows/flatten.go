package rows

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// PathDelimiter joins nested keys into a column path.
const PathDelimiter = "."

// FlattenJSON decodes a JSON document and flattens it with Flatten.
func FlattenJSON(data []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return Flatten(v)
}

// Flatten turns a decoded JSON object or array into flat rows.
//
// Nested object keys are joined with PathDelimiter. Every element of a nested
// array becomes its own row carrying the scalar siblings of the array, so
//
//	{"name": "x", "artists": [{"name": "a"}, {"name": "b"}]}
//
// yields {name: x, artists.name: a} and {name: x, artists.name: b}. Rows from
// sibling arrays are appended, not multiplied. Null becomes "".
func Flatten(v any) ([]Row, error) {
	switch v.(type) {
	case map[string]any, []any:
	default:
		return nil, errors.New("input should be either an object or an array")
	}

	n := flatten(v, "")
	if n.many {
		return n.rows, nil
	}
	return []Row{n.row}, nil
}

// flattened is either one row or a list of rows.
type flattened struct {
	row  Row
	rows []Row
	many bool
}

func flatten(v any, path string) flattened {
	switch t := v.(type) {
	case map[string]any:
		return flattenObject(t, path)
	case []any:
		out := flattened{many: true, rows: []Row{}}
		for _, item := range t {
			n := flatten(item, path)
			if n.many {
				out.rows = append(out.rows, n.rows...)
			} else {
				out.rows = append(out.rows, n.row)
			}
		}
		return out
	default:
		return flattened{row: Row{path: scalar(v)}}
	}
}

func flattenObject(obj map[string]any, path string) flattened {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	reduced := Row{}
	var partial []Row
	for _, k := range keys {
		child := k
		if path != "" {
			child = path + PathDelimiter + k
		}
		n := flatten(obj[k], child)
		if n.many {
			partial = append(partial, n.rows...)
			continue
		}
		for ck, cv := range n.row {
			reduced[ck] = cv
		}
	}

	if len(partial) == 0 {
		return flattened{row: reduced}
	}
	rows := make([]Row, len(partial))
	for i, p := range partial {
		row := make(Row, len(reduced)+len(p))
		for k, v := range reduced {
			row[k] = v
		}
		for k, v := range p {
			row[k] = v
		}
		rows[i] = row
	}
	return flattened{rows: rows, many: true}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
