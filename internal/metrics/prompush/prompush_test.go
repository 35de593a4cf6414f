package prompush

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/metrics"
)

/*
TestNewBackend_RequiresURL verifies that a missing gateway URL is rejected.
*/
func TestNewBackend_RequiresURL(t *testing.T) {
	if _, err := NewBackend("job", ""); err == nil {
		t.Fatalf("NewBackend with empty URL succeeded; want error")
	}
}

// findMetric returns the first metric family with the given name.
func findMetric(t *testing.T, fams []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range fams {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %q not found", name)
	return nil
}

/*
TestBackend_CollectsCounters verifies that IncCounter and ObserveHistogram
land in the registry with the expected label mapping.
*/
func TestBackend_CollectsCounters(t *testing.T) {
	b, err := NewBackend("sparkify", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter("etl_files_total", 1, metrics.Labels{"phase": "catalog", "status": "success"})
	b.IncCounter("etl_rows_total", 6, metrics.Labels{"kind": "songplays"})
	b.IncCounter("unknown_metric", 1, nil) // must be ignored
	b.ObserveHistogram("etl_file_duration_seconds", 0.25, metrics.Labels{"phase": "catalog", "status": "success"})

	fams, err := b.reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	files := findMetric(t, fams, "etl_files_total")
	if got := files.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("etl_files_total = %v; want 1", got)
	}

	rows := findMetric(t, fams, "etl_rows_total")
	if got := rows.GetMetric()[0].GetCounter().GetValue(); got != 6 {
		t.Fatalf("etl_rows_total = %v; want 6", got)
	}
	if got := rows.GetMetric()[0].GetLabel()[0].GetValue(); got != "songplays" {
		t.Fatalf("etl_rows_total kind = %q; want songplays", got)
	}

	dur := findMetric(t, fams, "etl_file_duration_seconds")
	if got := dur.GetMetric()[0].GetSummary().GetSampleCount(); got != 1 {
		t.Fatalf("duration sample count = %d; want 1", got)
	}
}

/*
TestBackend_FlushPushesToGateway verifies that Flush performs an HTTP push
to the gateway with the job name in the path.
*/
func TestBackend_FlushPushesToGateway(t *testing.T) {
	type req struct {
		method string
		path   string
	}
	got := make(chan req, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- req{method: r.Method, path: r.URL.Path}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("sparkify", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter("etl_rows_total", 1, metrics.Labels{"kind": "songs"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	select {
	case r := <-got:
		if !strings.Contains(r.path, "/job/sparkify") {
			t.Fatalf("push path = %q; want it to contain /job/sparkify", r.path)
		}
		if r.method != http.MethodPut && r.method != http.MethodPost {
			t.Fatalf("push method = %q; want PUT or POST", r.method)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no push request received")
	}
}
