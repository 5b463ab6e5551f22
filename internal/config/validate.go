package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the job
// (e.g. "storage.kind", "target.fields[1]").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateJob lints a decoded Job without mutating it. Callers decide
// whether warnings are fatal.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateParser(j.Parser)...)
	issues = append(issues, validateTarget(j.Target)...)
	issues = append(issues, validateStorage(j.Storage, j.Target)...)
	issues = append(issues, validateRuntime(j.Runtime)...)
	issues = append(issues, validateValidation(j.Validation)...)
	issues = append(issues, validateMetrics(j.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file", "":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q", s.Kind),
		})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if p.Kind != "" && p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q", p.Kind),
		})
		return issues
	}
	if c, ok := p.Options["comma"]; ok {
		s, isStr := c.(string)
		if !isStr || len([]rune(s)) != 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.comma",
				Message:  "comma must be a single character",
			})
		}
	}
	return issues
}

func validateTarget(t Target) []Issue {
	var issues []Issue
	if strings.TrimSpace(t.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "target.table",
			Message:  "target.table must not be empty",
		})
	}
	if len(t.Fields) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "target.fields",
			Message:  "at least one field descriptor is required",
		})
	}
	seen := map[string]int{}
	for i, f := range t.Fields {
		path := fmt.Sprintf("target.fields[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: "field name must not be empty"})
			continue
		}
		key := strings.ToLower(f.Name)
		if prev, dup := seen[key]; dup {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  fmt.Sprintf("field %q repeats target.fields[%d] (case-insensitive)", f.Name, prev),
			})
			continue
		}
		seen[key] = i
	}
	return issues
}

func validateStorage(s Storage, t Target) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}
	known := map[string]struct{}{
		"postgres": {},
		"mssql":    {},
		"sqlite":   {},
		"mysql":    {},
		"sqlfile":  {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}
	if s.AutoCreateTable && len(t.Fields) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.auto_create_table",
			Message:  "auto_create_table is true but target.fields is empty",
		})
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.BatchSize < 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; must be at least 1", r.BatchSize),
		})
	}
	switch r.StatementMode {
	case "", ModeLiteral:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.statement_mode",
			Message:  "literal mode does not escape quotes in TEXT values; prefer \"bind\"",
		})
	case ModeBind:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.statement_mode",
			Message:  fmt.Sprintf("unknown statement mode %q (want %q or %q)", r.StatementMode, ModeLiteral, ModeBind),
		})
	}
	return issues
}

func validateValidation(v Validation) []Issue {
	var issues []Issue
	if v.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "validation.workers",
			Message:  "workers must not be negative",
		})
	}
	if len(v.ReferenceColumns) > 0 && v.ReferenceFile != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "validation.reference_file",
			Message:  "reference_columns is set; reference_file is ignored",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus backend requires a pushgateway_url",
			})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.datadog_addr",
				Message:  "datadog_addr is empty; the client default (DD_AGENT_HOST) is used",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q", m.Backend),
		})
	}
	return issues
}
