package commands

import (
	"fmt"

	"tabload/internal/catalog"
	"tabload/internal/config"
	"tabload/internal/datasource/file"
)

// referenceResolver picks the reference column set for a dataset: explicit
// columns, then a list file, then the dataset's catalog keys.
type referenceResolver struct {
	columns  []string
	listFile string
	loader   *catalog.Loader

	fromFile []string
}

func newReferenceResolver(v config.Validation, loader *catalog.Loader) *referenceResolver {
	return &referenceResolver{columns: v.ReferenceColumns, listFile: v.ReferenceFile, loader: loader}
}

// configured reports whether an explicit reference set exists. Catalog keys
// alone do not count, so ingest does not gate on them.
func (r *referenceResolver) configured() bool {
	return len(r.columns) > 0 || r.listFile != ""
}

func (r *referenceResolver) resolve(dataset string) ([]string, error) {
	if len(r.columns) > 0 {
		return r.columns, nil
	}
	if r.listFile != "" {
		if r.fromFile == nil {
			cols, err := file.ReadList(r.listFile)
			if err != nil {
				return nil, fmt.Errorf("read reference columns: %w", err)
			}
			r.fromFile = cols
		}
		return r.fromFile, nil
	}
	cat, err := r.loader.Load(dataset)
	if err != nil {
		return nil, fmt.Errorf("reference columns for %s: %w", dataset, err)
	}
	return cat.Columns(), nil
}
