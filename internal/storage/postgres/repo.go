// Package postgres implements a Postgres sink using pgx v5. Composite literal
// statements go through the simple query protocol (which accepts several
// semicolon-separated statements in one round trip); bound statements are
// queued on a pgx.Batch inside one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabload/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// ExecBatch implements storage.Sink.
func (r *Repository) ExecBatch(ctx context.Context, st storage.Statement) error {
	if !st.Bound() {
		if st.SQL == "" {
			return nil
		}
		// No arguments: pgx uses the simple protocol, so the composite
		// statement is sent verbatim.
		_, err := r.pool.Exec(ctx, st.SQL)
		return describe(err)
	}

	return describe(pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, q := range st.Queries {
			b.Queue(q.SQL, q.Args...)
		}
		br := tx.SendBatch(ctx, b)
		for i := range st.Queries {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return br.Close()
	}))
}

// Exec runs an arbitrary statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return describe(err)
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() storage.Dialect { return storage.Postgres }

// describe folds the server-side detail of a PgError into the message while
// keeping the original error reachable through errors.As.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s: %s)", err, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}
