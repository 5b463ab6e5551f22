package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaResolution matches every *SchemaResolutionError.
	ErrSchemaResolution = errors.New("schema resolution failed")

	// ErrInvalidRequest reports a Request that cannot run (no fields, a
	// batch size below one, a nil sink).
	ErrInvalidRequest = errors.New("invalid ingest request")

	// ErrRowWidth is returned when a data row is too short to hold every
	// resolved column.
	ErrRowWidth = errors.New("row too short")
)

// SchemaResolutionError reports a field descriptor that does not resolve to
// exactly one header column. Ingest returns it before any row is read.
type SchemaResolutionError struct {
	Field   string
	Header  []string
	Matches int
}

func (e *SchemaResolutionError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("field %q not found in header [%s]", e.Field, strings.Join(e.Header, ", "))
	}
	return fmt.Sprintf("field %q matches %d header columns in [%s]", e.Field, e.Matches, strings.Join(e.Header, ", "))
}

// Is makes errors.Is(err, ErrSchemaResolution) succeed.
func (e *SchemaResolutionError) Is(target error) bool { return target == ErrSchemaResolution }

// BatchExecutionError records a batch the sink rejected. Ingest keeps going
// after one; it is never returned as the call's error.
type BatchExecutionError struct {
	// Index is the 1-based batch position in the stream.
	Index int
	File  string
	Rows  int
	Err   error
}

func (e *BatchExecutionError) Error() string {
	return fmt.Sprintf("batch %d (%d rows) of %s: %v", e.Index, e.Rows, e.File, e.Err)
}

func (e *BatchExecutionError) Unwrap() error { return e.Err }
