package validate

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"tabload/internal/catalog"
	"tabload/internal/logging"
)

var (
	// ExemptColumns are never value-checked.
	ExemptColumns = []string{"note", "NOTE", "NUMBER", "REPORTING_YEAR"}

	// Sentinels are accepted in every column regardless of the catalog.
	Sentinels = []string{"NS", "nan", "NP"}
)

// missing is the canonical form of an empty or absent cell.
const missing = "nan"

// Dataset is a fully read table. parser/csv.Table converts to it directly.
type Dataset struct {
	Header []string
	Rows   [][]string
}

// ViolationRecord is one distinct invalid value in one column.
type ViolationRecord struct {
	File   string `json:"file"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// ColumnLookupError reports a column the catalog has no entry for.
type ColumnLookupError struct {
	Dataset string
	Column  string
}

func (e *ColumnLookupError) Error() string {
	return fmt.Sprintf("%s: column %q has no allowed-value list", e.Dataset, e.Column)
}

// ColumnOutcome is the per-column result of CheckValues. Err is set when the
// column could not be checked (missing catalog entry, a panic, or
// cancellation); the other columns are unaffected.
type ColumnOutcome struct {
	Column   string
	Distinct int
	Invalid  []string
	Err      error
}

// ValuesResult is the outcome of CheckValues.
type ValuesResult struct {
	// Violations lists columns in dataset order, values in first-seen order.
	Violations []ViolationRecord
	// InvalidSets holds one entry per column with at least one violation.
	InvalidSets [][]string
	// Columns has one outcome per checked (non-exempt) column.
	Columns []ColumnOutcome
}

// OK reports whether no violations were found and every column was checked.
func (r ValuesResult) OK() bool {
	if len(r.Violations) > 0 {
		return false
	}
	for _, c := range r.Columns {
		if c.Err != nil {
			return false
		}
	}
	return true
}

// Option configures CheckValues.
type Option func(*valueOptions)

type valueOptions struct {
	workers int
}

// WithWorkers bounds how many columns are checked concurrently. Values
// below one select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *valueOptions) { o.workers = n }
}

// checkColumn is swapped in tests.
var checkColumn = distinctInvalid

// CheckValues validates every non-exempt column of ds against cat. Values
// are compared as exact strings; empty cells count as "nan". Results are
// merged in column order regardless of which worker finished first.
func CheckValues(ctx context.Context, name string, ds Dataset, cat catalog.Catalog, opts ...Option) ValuesResult {
	o := valueOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	log := logging.WithFields(ctx, "dataset", name)

	exempt := toSet(ExemptColumns)
	var cols []int
	for i, c := range ds.Header {
		if _, skip := exempt[c]; !skip {
			cols = append(cols, i)
		}
	}

	outcomes := make([]ColumnOutcome, len(cols))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for slot, ci := range cols {
		col := ds.Header[ci]
		outcomes[slot].Column = col
		g.Go(func() error {
			out := &outcomes[slot]
			defer func() {
				if p := recover(); p != nil {
					out.Invalid, out.Distinct = nil, 0
					out.Err = fmt.Errorf("column %q: panic: %v", col, p)
				}
			}()
			if err := ctx.Err(); err != nil {
				out.Err = err
				return nil
			}
			dom, ok := cat.Lookup(col)
			if !ok {
				out.Err = &ColumnLookupError{Dataset: name, Column: col}
				return nil
			}
			out.Distinct, out.Invalid = checkColumn(ds.Rows, ci, dom)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	var res ValuesResult
	res.Columns = outcomes
	for _, out := range outcomes {
		switch {
		case out.Err != nil:
			log.Warn("column not checked", "column", out.Column, "err", out.Err)
		case len(out.Invalid) > 0:
			log.Warn("invalid values", "column", out.Column, "values", out.Invalid)
			res.InvalidSets = append(res.InvalidSets, out.Invalid)
			for _, v := range out.Invalid {
				res.Violations = append(res.Violations, ViolationRecord{File: name, Column: out.Column, Value: v})
			}
		default:
			log.Debug("no invalid values", "column", out.Column, "distinct", out.Distinct)
		}
	}
	log.Info("value check completed", "columns", len(outcomes), "violations", len(res.Violations))
	return res
}

// distinctInvalid returns the number of distinct values in column ci and
// those not allowed by dom nor a sentinel, in first-seen order.
func distinctInvalid(rows [][]string, ci int, dom catalog.Domain) (int, []string) {
	sentinels := toSet(Sentinels)
	seen := map[string]struct{}{}
	var invalid []string
	for _, row := range rows {
		v := missing
		if ci < len(row) && row[ci] != "" {
			v = row[ci]
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := sentinels[v]; ok || dom.Allows(v) {
			continue
		}
		invalid = append(invalid, v)
	}
	return len(seen), invalid
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// WriteViolations writes recs as CSV with a file,column,value header.
func WriteViolations(w io.Writer, recs []ViolationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "column", "value"}); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write([]string{r.File, r.Column, r.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
