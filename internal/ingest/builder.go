package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"tabload/internal/schema"
	"tabload/internal/storage"
)

// Mode selects how values reach the store.
type Mode string

const (
	// Literal renders values into the statement text. TEXT values are
	// single-quoted without escaping, so embedded quotes break the
	// statement.
	Literal Mode = "literal"
	// Bind sends one parameterized statement per row.
	Bind Mode = "bind"
)

// ParseMode maps a configuration string to a Mode. Empty means Literal.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Literal:
		return Literal, nil
	case Bind:
		return Bind, nil
	}
	return "", fmt.Errorf("%w: unknown statement mode %q", ErrInvalidRequest, s)
}

// Coerce renders one raw value as a SQL literal. INTEGER values pass through
// unchanged except the exact string "nan", which becomes 0. TEXT values are
// wrapped in single quotes.
func Coerce(kind schema.Kind, raw string) string {
	if kind == schema.Integer {
		if raw == "nan" {
			return "0"
		}
		return raw
	}
	return "'" + raw + "'"
}

// BindValue is the bind-mode counterpart of Coerce. INTEGER values that parse
// are sent as int64; anything else is sent as its raw text and left for the
// store to accept or reject.
func BindValue(kind schema.Kind, raw string) any {
	if kind != schema.Integer {
		return raw
	}
	if raw == "nan" {
		return int64(0)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

// QualifiedName joins namespace and table. An empty namespace leaves the
// table unqualified.
func QualifiedName(namespace, table string) string {
	if namespace == "" {
		return table
	}
	return namespace + "." + table
}

// Builder turns batches of raw rows into storage statements.
type Builder struct {
	fields []schema.Field
	idx    ColumnIndex
	mode   Mode

	// prefix is "INSERT INTO <table> (<cols>) VALUES ".
	prefix  string
	bindSQL string
}

// NewBuilder prepares a Builder for rows shaped like the header idx was
// resolved against.
func NewBuilder(req Request, idx ColumnIndex) *Builder {
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		QualifiedName(req.Namespace, req.Table),
		strings.Join(schema.Names(req.Fields), ", "))
	b := &Builder{
		fields: req.Fields,
		idx:    idx,
		mode:   req.Mode,
		prefix: prefix,
	}
	if b.mode == Bind {
		b.bindSQL = prefix + "(" + req.Dialect.Placeholders(len(req.Fields)) + ")"
	}
	return b
}

// Row renders the literal INSERT for one row, without a trailing semicolon.
func (b *Builder) Row(row []string) string {
	var sb strings.Builder
	sb.WriteString(b.prefix)
	sb.WriteByte('(')
	for i, f := range b.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Coerce(f.Kind, row[b.idx[i]]))
	}
	sb.WriteByte(')')
	return sb.String()
}

func (b *Builder) query(row []string) storage.Query {
	args := make([]any, len(b.fields))
	for i, f := range b.fields {
		args[i] = BindValue(f.Kind, row[b.idx[i]])
	}
	return storage.Query{SQL: b.bindSQL, Args: args}
}

// Statement builds the composite statement for one batch. In literal mode
// the row statements are joined by "; " and terminated with ";".
func (b *Builder) Statement(rows [][]string) storage.Statement {
	st := storage.Statement{Rows: len(rows)}
	if b.mode == Bind {
		st.Queries = make([]storage.Query, len(rows))
		for i, r := range rows {
			st.Queries[i] = b.query(r)
		}
		return st
	}
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = b.Row(r)
	}
	st.SQL = strings.Join(parts, "; ") + ";"
	return st
}
