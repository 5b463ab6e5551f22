package ingest_test

import (
	"context"
	"strings"
	"testing"

	"tabload/internal/ingest"
	"tabload/internal/parser/csv"
	"tabload/internal/schema"
	"tabload/internal/storage"
	"tabload/internal/storage/sqlite"
)

const schoolsCSV = "\uFEFFSchool_ID,Name,Pupils\n" +
	"1,North,120\n" +
	"2,O'Brien Hall,nan\n" +
	"3,South,95\n"

func openDB(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, closeFn, err := sqlite.NewRepository(context.Background(), sqlite.Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(closeFn)
	return repo
}

func load(t *testing.T, repo *sqlite.Repository, mode ingest.Mode) ingest.Result {
	t.Helper()

	fields, err := schema.ParseFields([]string{"school_id INTEGER", "name TEXT", "pupils INTEGER"})
	if err != nil {
		t.Fatalf("ParseFields: %v", err)
	}
	ctx := context.Background()
	if err := storage.EnsureTable(ctx, repo, "schools", fields); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(schoolsCSV), csv.Options{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	req := ingest.Request{
		Namespace: "main",
		Table:     "schools",
		Fields:    fields,
		BatchSize: 1,
		File:      "schools.csv",
		Mode:      mode,
		Dialect:   repo.Dialect(),
	}
	res, err := ingest.Ingest(ctx, req, rows, repo)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return res
}

func names(t *testing.T, repo *sqlite.Repository) []string {
	t.Helper()
	rs, err := repo.DB().Query("SELECT name FROM schools ORDER BY school_id")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rs.Close()
	var out []string
	for rs.Next() {
		var s string
		if err := rs.Scan(&s); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, s)
	}
	return out
}

func TestIngestSQLite_LiteralUnescapedQuoteFailsOnlyItsBatch(t *testing.T) {
	t.Parallel()

	repo := openDB(t)
	res := load(t, repo, ingest.Literal)

	if res.RowsProcessed != 3 || res.Batches != 3 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.BatchErrors) != 1 || res.BatchErrors[0].Index != 2 {
		t.Fatalf("batch errors = %v, want batch 2 only", res.BatchErrors)
	}
	if got := strings.Join(names(t, repo), ","); got != "North,South" {
		t.Fatalf("stored names = %q", got)
	}
}

func TestIngestSQLite_BindStoresQuotes(t *testing.T) {
	t.Parallel()

	repo := openDB(t)
	res := load(t, repo, ingest.Bind)
	if !res.OK() {
		t.Fatalf("batch errors = %v", res.BatchErrors)
	}
	if got := strings.Join(names(t, repo), ","); got != "North,O'Brien Hall,South" {
		t.Fatalf("stored names = %q", got)
	}

	var pupils int
	if err := repo.DB().QueryRow("SELECT pupils FROM schools WHERE school_id = 2").Scan(&pupils); err != nil {
		t.Fatalf("scan pupils: %v", err)
	}
	if pupils != 0 {
		t.Fatalf("pupils = %d, want nan coerced to 0", pupils)
	}
}
