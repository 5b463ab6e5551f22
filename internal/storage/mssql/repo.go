// Package mssql implements a Microsoft SQL Server sink on database/sql with
// the go-mssqldb driver. SQL Server accepts a semicolon-separated batch of
// INSERT statements in one round trip, so composite literals are sent as-is.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"tabload/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, close, nil
}

// ExecBatch implements storage.Sink.
func (r *Repository) ExecBatch(ctx context.Context, st storage.Statement) error {
	return describe(storage.ExecSQL(ctx, r.db, st))
}

// Exec runs an arbitrary statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.db.ExecContext(ctx, sql)
	return describe(err)
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() storage.Dialect { return storage.MSSQL }

// describe prefixes server errors with their error number and line.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return fmt.Errorf("mssql %d (line %d): %w", msErr.Number, msErr.LineNo, err)
	}
	return err
}
