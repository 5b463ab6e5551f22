// Package sqlfile is a dry-run storage backend: instead of executing batches
// it appends them to a text file (DSN is the file path), one line per batch.
// Bound statements are written with their arguments in a trailing comment.
package sqlfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"tabload/internal/storage"
)

// Repository writes statements to w.
type Repository struct {
	mu      sync.Mutex
	w       io.Writer
	dialect storage.Dialect
	closeFn func() error
}

// New wraps an arbitrary writer. The dialect only affects placeholders.
func New(w io.Writer, d storage.Dialect) *Repository {
	return &Repository{w: w, dialect: d}
}

// Open appends to the file at path, creating it when missing.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlfile: path must not be empty")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sqlfile: %w", err)
	}
	r := New(f, storage.Postgres)
	r.closeFn = f.Close
	return r, nil
}

// ExecBatch implements storage.Sink.
func (r *Repository) ExecBatch(ctx context.Context, st storage.Statement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !st.Bound() {
		_, err := fmt.Fprintln(r.w, st.SQL)
		return err
	}
	for _, q := range st.Queries {
		if _, err := fmt.Fprintf(r.w, "%s; -- %v\n", q.SQL, q.Args); err != nil {
			return err
		}
	}
	return nil
}

// Exec writes sql verbatim.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.w, "%s;\n", sql)
	return err
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() storage.Dialect { return r.dialect }

// Close closes the underlying file, if any.
func (r *Repository) Close() {
	if r.closeFn != nil {
		_ = r.closeFn()
	}
}

func init() {
	storage.Register("sqlfile", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return Open(cfg.DSN)
	})
}
