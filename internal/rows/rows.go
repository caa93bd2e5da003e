// Package rows holds the flat records fed into the base relation.
package rows

import "errors"

// ErrNoValidRows is returned when no row carries every required column.
var ErrNoValidRows = errors.New("no valid rows found in dataset")

// Row maps a column path to its value.
type Row = map[string]string

// Project keeps only the required columns of each row and drops rows missing
// any of them. The result fails with ErrNoValidRows when empty, since a run
// with nothing to migrate is a user error.
func Project(in []Row, required []string) ([]Row, error) {
	out := make([]Row, 0, len(in))
	for _, row := range in {
		projected := make(Row, len(required))
		for _, col := range required {
			if v, ok := row[col]; ok {
				projected[col] = v
			}
		}
		if len(projected) != len(required) {
			continue
		}
		out = append(out, projected)
	}
	if len(out) == 0 {
		return nil, ErrNoValidRows
	}
	return out, nil
}

// Values flattens projected rows into the positional parameter list, row by
// row, in column order.
func Values(in []Row, columns []string) []any {
	params := make([]any, 0, len(in)*len(columns))
	for _, row := range in {
		for _, col := range columns {
			params = append(params, row[col])
		}
	}
	return params
}
