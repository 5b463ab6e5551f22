package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tabload/internal/schema"
)

// Dialect captures the per-backend differences the ingest engine and the
// table bootstrapper care about.
type Dialect struct {
	Name string
	// Placeholder renders the i-th (1-based) bind parameter.
	Placeholder func(i int) string
	IntegerType string
	TextType    string
	// IfNotExists reports support for CREATE TABLE IF NOT EXISTS.
	IfNotExists bool
}

func dollar(i int) string { return "$" + strconv.Itoa(i) }
func atP(i int) string    { return "@p" + strconv.Itoa(i) }
func question(int) string { return "?" }

var (
	Postgres = Dialect{Name: "postgres", Placeholder: dollar, IntegerType: "BIGINT", TextType: "TEXT", IfNotExists: true}
	MSSQL    = Dialect{Name: "mssql", Placeholder: atP, IntegerType: "BIGINT", TextType: "NVARCHAR(MAX)"}
	SQLite   = Dialect{Name: "sqlite", Placeholder: question, IntegerType: "INTEGER", TextType: "TEXT", IfNotExists: true}
	MySQL    = Dialect{Name: "mysql", Placeholder: question, IntegerType: "BIGINT", TextType: "TEXT", IfNotExists: true}
)

// Placeholders renders n bind parameters joined by ", ".
func (d Dialect) Placeholders(n int) string {
	ph := d.Placeholder
	if ph == nil {
		ph = question
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

// CreateTableSQL renders DDL that creates fqn with one column per field when
// it does not exist yet.
func CreateTableSQL(d Dialect, fqn string, fields []schema.Field) (string, error) {
	if strings.TrimSpace(fqn) == "" {
		return "", fmt.Errorf("create table: empty table name")
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("create table %s: no fields", fqn)
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		typ := d.TextType
		if f.Kind == schema.Integer {
			typ = d.IntegerType
		}
		cols[i] = f.Name + " " + typ
	}
	body := "(\n\t" + strings.Join(cols, ",\n\t") + "\n)"
	if d.IfNotExists {
		return "CREATE TABLE IF NOT EXISTS " + fqn + " " + body, nil
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s %s", fqn, fqn, body), nil
}

// EnsureTable creates fqn on repo when missing.
func EnsureTable(ctx context.Context, repo Execer, fqn string, fields []schema.Field) error {
	ddl, err := CreateTableSQL(repo.Dialect(), fqn, fields)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	return nil
}
