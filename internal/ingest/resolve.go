package ingest

import (
	"strings"

	"tabload/internal/schema"
)

// ColumnIndex holds, per field descriptor, the header position it reads from.
type ColumnIndex []int

// Need is the minimum row width that covers every position.
func (ci ColumnIndex) Need() int {
	n := 0
	for _, i := range ci {
		if i+1 > n {
			n = i + 1
		}
	}
	return n
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(h, "\uFEFF", "")
}

// Resolve maps each field to its header position. Matching ignores case and
// byte-order marks; a field must match exactly one header column.
func Resolve(header []string, fields []schema.Field) (ColumnIndex, error) {
	clean := make([]string, len(header))
	for i, h := range header {
		clean[i] = normalizeHeader(h)
	}

	idx := make(ColumnIndex, len(fields))
	for fi, f := range fields {
		pos, matches := -1, 0
		for hi, h := range clean {
			if strings.EqualFold(h, f.Name) {
				if pos < 0 {
					pos = hi
				}
				matches++
			}
		}
		if matches != 1 {
			return nil, &SchemaResolutionError{Field: f.Name, Header: clean, Matches: matches}
		}
		idx[fi] = pos
	}
	return idx, nil
}
