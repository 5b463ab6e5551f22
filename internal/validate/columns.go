// Package validate checks a dataset before it is ingested: its columns
// against a reference column set, and its values against a per-column
// allowed-value catalog. Both checks report findings as values; neither
// returns an error for a dataset that merely fails validation.
package validate

import (
	"fmt"
	"strings"
)

// DiscrepancyReport is the outcome of CheckColumns for one dataset.
type DiscrepancyReport struct {
	Label string
	// Extra lists dataset columns missing from Reference, in dataset order.
	Extra     []string
	Reference []string
}

// OK reports whether every dataset column is in the reference set.
func (r DiscrepancyReport) OK() bool { return len(r.Extra) == 0 }

// Err returns a *SchemaShapeError when the report has discrepancies.
func (r DiscrepancyReport) Err() error {
	if r.OK() {
		return nil
	}
	return &SchemaShapeError{Label: r.Label, Extra: r.Extra}
}

// SchemaShapeError marks a dataset that must not be ingested until its
// columns are corrected.
type SchemaShapeError struct {
	Label string
	Extra []string
}

func (e *SchemaShapeError) Error() string {
	return fmt.Sprintf("%s: columns not in reference set: %s", e.Label, strings.Join(e.Extra, ", "))
}

// CheckColumns computes datasetColumns \ reference with exact string
// matching. Every column participates, including ones exempt from value
// checks.
func CheckColumns(datasetColumns, reference []string, label string) DiscrepancyReport {
	ref := make(map[string]struct{}, len(reference))
	for _, c := range reference {
		ref[c] = struct{}{}
	}
	r := DiscrepancyReport{Label: label, Reference: reference}
	for _, c := range datasetColumns {
		if _, ok := ref[c]; !ok {
			r.Extra = append(r.Extra, c)
		}
	}
	return r
}
