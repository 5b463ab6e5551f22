// Package config defines the job model for tabload. A job file (JSON or YAML)
// names the input, how to parse it, where rows go and how the dataset is
// validated.
//
// Example (trimmed):
//
//	{
//	  "job":     "schools_2023",
//	  "source":  { "kind": "file", "file": { "path": "data/SCHOOLS_2023.csv" } },
//	  "parser":  { "kind": "csv", "options": { "comma": ",", "trim_space": true } },
//	  "target":  { "namespace": "raw", "table": "schools", "fields": ["a INTEGER", "b TEXT"] },
//	  "storage": { "kind": "postgres", "dsn": "postgresql://..." },
//	  "runtime": { "batch_size": 500, "statement_mode": "bind" },
//	  "validation": { "catalog_dir": "config", "error_log": "err.txt" }
//	}
package config

import (
	"encoding/json"

	"tabload/internal/schema"
)

// Statement modes accepted in runtime.statement_mode.
const (
	ModeLiteral = "literal"
	ModeBind    = "bind"
)

// Job is the top-level object decoded from a job file.
type Job struct {
	// Job names the run; it labels metrics and log lines.
	Job string `json:"job" yaml:"job"`

	Source     Source     `json:"source" yaml:"source"`
	Parser     Parser     `json:"parser" yaml:"parser"`
	Target     Target     `json:"target" yaml:"target"`
	Storage    Storage    `json:"storage" yaml:"storage"`
	Runtime    Runtime    `json:"runtime" yaml:"runtime"`
	Validation Validation `json:"validation" yaml:"validation"`
	Metrics    Metrics    `json:"metrics" yaml:"metrics"`
}

// Source identifies the input. Only "file" exists today.
type Source struct {
	Kind string     `json:"kind" yaml:"kind"`
	File SourceFile `json:"file" yaml:"file"`
}

// SourceFile holds the path of a file source. A directory selects every
// *.csv file inside it.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// Parser selects how raw bytes become rows.
type Parser struct {
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the parser. For CSV:
	//   comma (string), trim_space (bool), lazy_quotes (bool),
	//   header_map (object), replace (object)
	Options Options `json:"options" yaml:"options"`
}

// Target describes the destination table and the ordered field descriptors
// used for both the column list and per-column coercion.
type Target struct {
	Namespace string         `json:"namespace" yaml:"namespace"`
	Table     string         `json:"table" yaml:"table"`
	Fields    []schema.Field `json:"fields" yaml:"fields"`
}

// FQN returns "namespace.table", or just the table when no namespace is set.
func (t Target) FQN() string {
	if t.Namespace == "" {
		return t.Table
	}
	return t.Namespace + "." + t.Table
}

// Storage selects the sink.
type Storage struct {
	// Kind selects a registered backend: postgres, mssql, sqlite, mysql, sqlfile.
	Kind string `json:"kind" yaml:"kind"`

	// DSN is the backend connection string (a file path for sqlite/sqlfile).
	DSN string `json:"dsn" yaml:"dsn"`

	// AutoCreateTable creates the target table from Target.Fields before
	// the first batch.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`
}

// Runtime controls batching.
type Runtime struct {
	BatchSize     int    `json:"batch_size" yaml:"batch_size"`
	StatementMode string `json:"statement_mode" yaml:"statement_mode"`
}

// Validation configures the column and value checks.
type Validation struct {
	// CatalogDir holds <name>_config.json documents.
	CatalogDir string `json:"catalog_dir" yaml:"catalog_dir"`

	// ErrorLog is the append-only report file. Empty disables it.
	ErrorLog string `json:"error_log" yaml:"error_log"`

	// ReferenceColumns is the declared column set. When empty,
	// ReferenceFile is read instead; when both are empty the catalog keys
	// are used.
	ReferenceColumns []string `json:"reference_columns" yaml:"reference_columns"`
	ReferenceFile    string   `json:"reference_file" yaml:"reference_file"`

	// ViolationsFile receives the value violations as CSV. Optional.
	ViolationsFile string `json:"violations_file" yaml:"violations_file"`

	// Workers bounds per-column parallelism.
	Workers int `json:"workers" yaml:"workers"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	// Backend is "", "none", "prometheus" or "datadog".
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Options fetches typed values from a free-form map. It performs minimal
// coercion and falls back to the supplied default when a key is absent or
// of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json yields float64,
// yaml.v3 yields int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string-valued entries of an object value. Missing
// keys yield an empty map.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	v, ok := o[key]
	if !ok {
		return res
	}
	switch m := v.(type) {
	case map[string]any:
		for k, vv := range m {
			if s, ok := vv.(string); ok {
				res[k] = s
			}
		}
	case map[string]string:
		for k, s := range m {
			res[k] = s
		}
	}
	return res
}

// UnmarshalJSON makes a missing or null "options" decode to an empty map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
