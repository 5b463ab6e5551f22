package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tabload/internal/schema"
)

func TestDecode_JSON(t *testing.T) {
	t.Parallel()

	const js = `{
	  "job": "schools",
	  "source": { "kind": "file", "file": { "path": "data/SCHOOLS.csv" } },
	  "parser": { "kind": "csv", "options": { "comma": ";", "trim_space": true, "header_map": { "A": "a" } } },
	  "target": { "namespace": "raw", "table": "schools", "fields": ["id INTEGER", { "name": "label", "kind": "text" }] },
	  "storage": { "kind": "postgres", "dsn": "postgresql://u@h/db", "auto_create_table": true },
	  "runtime": { "batch_size": 250, "statement_mode": "bind" },
	  "validation": { "catalog_dir": "cfg", "reference_columns": ["id", "label"], "workers": 4 },
	  "metrics": { "backend": "prometheus", "pushgateway_url": "http://pg:9091" }
	}`

	j, err := Decode([]byte(js), ".json")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []schema.Field{{Name: "id", Kind: schema.Integer}, {Name: "label", Kind: schema.Text}}
	if diff := cmp.Diff(want, j.Target.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if got := j.Target.FQN(); got != "raw.schools" {
		t.Errorf("FQN = %q", got)
	}
	if got := j.Parser.Options.Rune("comma", ','); got != ';' {
		t.Errorf("comma = %q", got)
	}
	if got := j.Parser.Options.StringMap("header_map"); got["A"] != "a" {
		t.Errorf("header_map = %v", got)
	}
	if j.Runtime.BatchSize != 250 || j.Runtime.StatementMode != ModeBind {
		t.Errorf("runtime = %+v", j.Runtime)
	}
	if !j.Storage.AutoCreateTable || j.Validation.Workers != 4 {
		t.Errorf("storage=%+v validation=%+v", j.Storage, j.Validation)
	}
}

func TestDecode_JSONRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte(`{"job":"x","bogus":1}`), ".json"); err == nil {
		t.Fatal("expected error for unknown field")
	}
	if _, err := Decode([]byte(`{"target":{"fields":["a FLOAT"]}}`), ".json"); err == nil {
		t.Fatal("expected error for unknown field kind")
	}
}

func TestDecode_YAML(t *testing.T) {
	t.Parallel()

	const y = `
job: schools
source:
  file:
    path: data/
parser:
  options:
    comma: "|"
    lazy_quotes: true
target:
  table: schools
  fields:
    - id INTEGER
    - name: label
      kind: TEXT
storage:
  kind: sqlite
  dsn: out.db
`
	j, err := Decode([]byte(y), ".YML")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := j.Target.FQN(); got != "schools" {
		t.Errorf("FQN = %q, want unqualified", got)
	}
	if len(j.Target.Fields) != 2 || j.Target.Fields[1].Kind != schema.Text {
		t.Errorf("fields = %+v", j.Target.Fields)
	}
	if !j.Parser.Options.Bool("lazy_quotes", false) || j.Parser.Options.Rune("comma", ',') != '|' {
		t.Errorf("options = %v", j.Parser.Options)
	}
}

func TestApplyEnvAndDefaults(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvDSN:       "postgresql://env",
		EnvBatchSize: " 42 ",
		EnvErrorLog:  "errors.log",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	j := Job{Storage: Storage{Kind: "postgres"}, Validation: Validation{CatalogDir: "mine"}}
	ApplyEnv(&j, lookup)
	ApplyDefaults(&j)

	if j.Storage.DSN != "postgresql://env" || j.Runtime.BatchSize != 42 {
		t.Errorf("env not applied: %+v %+v", j.Storage, j.Runtime)
	}
	if j.Validation.CatalogDir != "mine" || j.Validation.ErrorLog != "errors.log" {
		t.Errorf("validation = %+v", j.Validation)
	}
	if j.Runtime.StatementMode != ModeLiteral || j.Source.Kind != "file" || j.Parser.Kind != "csv" {
		t.Errorf("defaults not applied: %+v", j)
	}

	// Set fields win over the environment.
	k := Job{Storage: Storage{DSN: "explicit"}, Runtime: Runtime{BatchSize: 7}}
	ApplyEnv(&k, lookup)
	if k.Storage.DSN != "explicit" || k.Runtime.BatchSize != 7 {
		t.Errorf("explicit values overridden: %+v %+v", k.Storage, k.Runtime)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "job.json")
	js := `{"job":"j","source":{"file":{"path":"x.csv"}},"target":{"table":"t","fields":["a TEXT"]},"storage":{"kind":"sqlite","dsn":"x.db"}}`
	if err := os.WriteFile(p, []byte(js), 0o644); err != nil {
		t.Fatal(err)
	}
	j, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if j.Validation.ErrorLog == "" || j.Runtime.BatchSize == 0 {
		t.Errorf("defaults missing: %+v", j)
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
}

func TestOptions_TypedAccess(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":   "x",
		"b":   true,
		"f":   float64(3),
		"i":   5,
		"m":   map[string]any{"k": "v", "n": 1},
		"ms":  map[string]string{"k2": "v2"},
		"bad": []any{1},
	}
	if o.String("s", "d") != "x" || o.String("b", "d") != "d" {
		t.Error("String")
	}
	if !o.Bool("b", false) || o.Bool("s", false) {
		t.Error("Bool")
	}
	if o.Int("f", 0) != 3 || o.Int("i", 0) != 5 || o.Int("s", 9) != 9 {
		t.Error("Int")
	}
	if o.Rune("s", ',') != 'x' || o.Rune("missing", ',') != ',' {
		t.Error("Rune")
	}
	if diff := cmp.Diff(map[string]string{"k": "v"}, o.StringMap("m")); diff != "" {
		t.Errorf("StringMap(m): %s", diff)
	}
	if diff := cmp.Diff(map[string]string{"k2": "v2"}, o.StringMap("ms")); diff != "" {
		t.Errorf("StringMap(ms): %s", diff)
	}
	if got := o.StringMap("bad"); len(got) != 0 {
		t.Errorf("StringMap(bad) = %v", got)
	}
}
