package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted when the corresponding job field is empty.
const (
	EnvDSN         = "TABLOAD_DSN"
	EnvStorageKind = "TABLOAD_STORAGE_KIND"
	EnvBatchSize   = "TABLOAD_BATCH_SIZE"
	EnvCatalogDir  = "TABLOAD_CATALOG_DIR"
	EnvErrorLog    = "TABLOAD_ERROR_LOG"
	EnvPushgateway = "TABLOAD_PUSHGATEWAY_URL"
	EnvDatadogAddr = "TABLOAD_DATADOG_ADDR"
)

// Defaults applied after environment fallbacks.
const (
	DefaultBatchSize  = 100
	DefaultCatalogDir = "config"
	DefaultErrorLog   = "err.txt"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads a job file. Files ending in .yaml or .yml are decoded as YAML,
// everything else as JSON. Environment fallbacks and defaults are applied to
// the result.
func Load(path string) (Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job %s: %w", path, err)
	}
	job, err := Decode(b, filepath.Ext(path))
	if err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", path, err)
	}
	ApplyEnv(&job, os.LookupEnv)
	ApplyDefaults(&job)
	return job, nil
}

// Decode parses a job document. ext selects the format (".yaml"/".yml" for
// YAML, anything else JSON).
func Decode(b []byte, ext string) (Job, error) {
	var job Job
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &job); err != nil {
			return Job{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&job); err != nil {
			return Job{}, err
		}
	}
	if job.Parser.Options == nil {
		job.Parser.Options = Options{}
	}
	return job, nil
}

// ApplyEnv fills empty job fields from the environment. lookup is normally
// os.LookupEnv.
func ApplyEnv(job *Job, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	set(&job.Storage.DSN, EnvDSN)
	set(&job.Storage.Kind, EnvStorageKind)
	set(&job.Validation.CatalogDir, EnvCatalogDir)
	set(&job.Validation.ErrorLog, EnvErrorLog)
	set(&job.Metrics.PushgatewayURL, EnvPushgateway)
	set(&job.Metrics.DatadogAddr, EnvDatadogAddr)

	if job.Runtime.BatchSize == 0 {
		if v, ok := lookup(EnvBatchSize); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				job.Runtime.BatchSize = n
			}
		}
	}
}

// ApplyDefaults fills fields that still have their zero value.
func ApplyDefaults(job *Job) {
	if job.Source.Kind == "" {
		job.Source.Kind = "file"
	}
	if job.Parser.Kind == "" {
		job.Parser.Kind = "csv"
	}
	if job.Runtime.BatchSize == 0 {
		job.Runtime.BatchSize = DefaultBatchSize
	}
	if job.Runtime.StatementMode == "" {
		job.Runtime.StatementMode = ModeLiteral
	}
	if job.Validation.CatalogDir == "" {
		job.Validation.CatalogDir = DefaultCatalogDir
	}
	if job.Validation.ErrorLog == "" {
		job.Validation.ErrorLog = DefaultErrorLog
	}
}
