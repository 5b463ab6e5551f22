// Package datasource defines where input files come from.
package datasource

import (
	"context"
	"io"
)

// Source opens one input for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name is the dataset name used to look up catalogs and label reports.
	Name() string
}
