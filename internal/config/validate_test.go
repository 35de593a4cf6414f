package config

import (
	"strings"
	"testing"
)

// validPipeline returns a Pipeline that passes validation cleanly.
func validPipeline() Pipeline {
	return Pipeline{
		Job:     "sparkify",
		Catalog: SourceDir{Path: "data/song_data"},
		Events:  SourceDir{Path: "data/log_data"},
		Storage: Storage{Kind: "postgres", DB: DBConfig{DSN: "postgresql://localhost/sparkifydb"}},
	}
}

// issueAt returns the first issue whose Path matches, or nil.
func issueAt(issues []Issue, path string) *Issue {
	for i := range issues {
		if issues[i].Path == path {
			return &issues[i]
		}
	}
	return nil
}

/*
TestValidatePipeline_Valid verifies that a complete pipeline yields no
issues.
*/
func TestValidatePipeline_Valid(t *testing.T) {
	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("ValidatePipeline returned issues for a valid config: %v", issues)
	}
}

/*
TestValidatePipeline_Findings exercises the individual checks: severity,
path, and HasErrors classification.
*/
func TestValidatePipeline_Findings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Pipeline)
		path     string
		severity IssueSeverity
	}{
		{
			name:     "missing_job",
			mutate:   func(p *Pipeline) { p.Job = "" },
			path:     "job",
			severity: SeverityWarning,
		},
		{
			name:     "missing_storage_kind",
			mutate:   func(p *Pipeline) { p.Storage.Kind = "" },
			path:     "storage.kind",
			severity: SeverityError,
		},
		{
			name:     "unknown_storage_kind",
			mutate:   func(p *Pipeline) { p.Storage.Kind = "oracle" },
			path:     "storage.kind",
			severity: SeverityWarning,
		},
		{
			name:     "missing_dsn",
			mutate:   func(p *Pipeline) { p.Storage.DB.DSN = "  " },
			path:     "storage.db.dsn",
			severity: SeverityError,
		},
		{
			name:     "no_inputs",
			mutate:   func(p *Pipeline) { p.Catalog.Path = ""; p.Events.Path = "" },
			path:     "catalog.path",
			severity: SeverityError,
		},
		{
			name:     "catalog_only_warning",
			mutate:   func(p *Pipeline) { p.Catalog.Path = "" },
			path:     "catalog.path",
			severity: SeverityWarning,
		},
		{
			name:     "negative_retries",
			mutate:   func(p *Pipeline) { p.Runtime.MaxRetries = -1 },
			path:     "runtime.max_retries",
			severity: SeverityError,
		},
		{
			name:     "negative_backoff",
			mutate:   func(p *Pipeline) { p.Runtime.RetryBackoffMS = -5 },
			path:     "runtime.retry_backoff_ms",
			severity: SeverityError,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := validPipeline()
			tc.mutate(&p)

			issues := ValidatePipeline(p)
			iss := issueAt(issues, tc.path)
			if iss == nil {
				t.Fatalf("no issue at %q; got %v", tc.path, issues)
			}
			if iss.Severity != tc.severity {
				t.Fatalf("severity = %s; want %s", iss.Severity, tc.severity)
			}
			if got, want := HasErrors(issues), tc.severity == SeverityError; got != want {
				t.Fatalf("HasErrors = %v; want %v", got, want)
			}
		})
	}
}

/*
TestIssue_Error verifies the Issue error string format used by the CLI.
*/
func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "storage.db.dsn", Message: "connection DSN is required"}
	if got := iss.Error(); !strings.Contains(got, "error at storage.db.dsn") {
		t.Fatalf("Error() = %q; want it to contain %q", got, "error at storage.db.dsn")
	}
}
