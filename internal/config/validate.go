// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of
// issues (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block
	// execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be
	// surfaced to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownStorageKinds mirrors the backends registered by
// internal/storage/all. Kept as a literal so config stays free of storage
// imports.
var knownStorageKinds = map[string]bool{
	"postgres": true,
	"sqlite":   true,
}

// ValidatePipeline performs static validation / linting of a Pipeline. It
// does not mutate the pipeline; it returns a slice of Issue values, and
// callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; logs and metrics will use a generic name",
		})
	}

	kind := strings.TrimSpace(p.Storage.Kind)
	switch {
	case kind == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage kind is required",
		})
	case !knownStorageKinds[kind]:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; the run will fail unless a backend registered it", kind),
		})
	}

	if strings.TrimSpace(p.Storage.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "connection DSN is required",
		})
	}

	catalog := strings.TrimSpace(p.Catalog.Path) != ""
	events := strings.TrimSpace(p.Events.Path) != ""
	switch {
	case !catalog && !events:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "catalog.path",
			Message:  "at least one of catalog.path and events.path must be set",
		})
	case !catalog:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "catalog.path",
			Message:  "catalog.path is empty: the catalog phase is skipped, so songplays will only match songs loaded by earlier runs",
		})
	case !events:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "events.path",
			Message:  "events.path is empty; only the catalog phase will run",
		})
	}

	if p.Runtime.MaxRetries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.max_retries",
			Message:  "max_retries must not be negative",
		})
	}
	if p.Runtime.RetryBackoffMS < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.retry_backoff_ms",
			Message:  "retry_backoff_ms must not be negative",
		})
	}

	return issues
}

// HasErrors reports whether any issue carries SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
