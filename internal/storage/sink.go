// Package storage contains the storage-agnostic contracts used by the ingest
// engine: a Sink that accepts one composite statement per batch, and a
// Repository factory so backends (Postgres, MSSQL, SQLite, MySQL) register
// themselves at init time and callers stay backend-agnostic.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Query is a single parameterized statement.
type Query struct {
	SQL  string
	Args []any
}

// Statement is the unit submitted to a Sink for one batch. Exactly one of
// SQL (a composite literal statement) or Queries (bound per-row statements)
// is populated.
type Statement struct {
	SQL     string
	Queries []Query
	Rows    int
}

// Bound reports whether the statement carries parameterized queries.
func (s Statement) Bound() bool { return len(s.Queries) > 0 }

// Sink accepts composite statements. Each call is independent; no
// transactional guarantee spans calls.
type Sink interface {
	ExecBatch(ctx context.Context, st Statement) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, st Statement) error

func (f SinkFunc) ExecBatch(ctx context.Context, st Statement) error { return f(ctx, st) }

// Execer runs one-off statements in a known dialect.
type Execer interface {
	// Exec runs an arbitrary statement (typically DDL).
	Exec(ctx context.Context, sql string) error
	Dialect() Dialect
}

// Repository is a Sink backed by a real database connection.
type Repository interface {
	Sink
	Execer
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
