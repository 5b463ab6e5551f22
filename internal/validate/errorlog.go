package validate

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrorLog is an append-only text sink receiving one record per
// CheckColumns call.
type ErrorLog struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewErrorLog writes records to w.
func NewErrorLog(w io.Writer) *ErrorLog { return &ErrorLog{w: w} }

// OpenErrorLog opens path for appending, creating it when missing.
func OpenErrorLog(path string) (*ErrorLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	return &ErrorLog{w: f, closer: f}, nil
}

// Append writes one record:
//
//	### CHECKING FILE <label> ###
//	There are errors in the file <label>. Columns not found in the config: ['C']
//	Correct columns are: ['A', 'B']
//
// or, for a clean report, the header line followed by
// "No errors found in the file <label>.".
func (l *ErrorLog) Append(r DiscrepancyReport) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### CHECKING FILE %s ###\n", r.Label)
	if r.OK() {
		fmt.Fprintf(&sb, "No errors found in the file %s.\n", r.Label)
	} else {
		fmt.Fprintf(&sb, "There are errors in the file %s. Columns not found in the config: %s\n", r.Label, listRepr(r.Extra))
		fmt.Fprintf(&sb, "Correct columns are: %s\n", listRepr(r.Reference))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, sb.String())
	return err
}

// Close closes the file opened by OpenErrorLog.
func (l *ErrorLog) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// listRepr renders ['a', 'b'], the list format existing err.txt files use.
func listRepr(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
