// Package mysql implements a MySQL sink with go-sql-driver/mysql. The driver
// rejects semicolon-joined statements unless multiStatements is enabled, so
// NewRepository forces it on for every DSN.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"tabload/internal/storage"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN string // e.g. user:pass@tcp(localhost:3306)/db
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := connectorConfig(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, close, nil
}

// connectorConfig parses dsn and enables multi-statement batches.
func connectorConfig(dsn string) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mc.MultiStatements = true
	return mc, nil
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
func (r *Repository) Dialect() storage.Dialect { return storage.MySQL }

func describe(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Errorf("mysql %d: %w", myErr.Number, err)
	}
	return err
}
