package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	m := New()
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}
	m.IncAuthFailures()
	fams, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(fams) == 0 {
		t.Fatal("expected at least one metric family after increment")
	}
}

func TestRecordTransform(t *testing.T) {
	m := New()

	m.RecordTransform("esbuild", nil, time.Millisecond)
	m.RecordTransform("esbuild", nil, time.Millisecond)
	m.RecordTransform("esbuild", errors.New("boom"), time.Millisecond)

	if v := testutil.ToFloat64(m.TransformsTotal.WithLabelValues("esbuild", "ok")); v != 2 {
		t.Fatalf("expected ok count 2, got %v", v)
	}
	if v := testutil.ToFloat64(m.TransformsTotal.WithLabelValues("esbuild", "error")); v != 1 {
		t.Fatalf("expected error count 1, got %v", v)
	}
}

func TestRecordVersionCheck(t *testing.T) {
	m := New()

	m.RecordVersionCheck("6.25.0", nil)
	m.RecordVersionCheck("6.26.0", nil)
	m.RecordVersionCheck("", errors.New("npm down"))

	if v := testutil.ToFloat64(m.LatestVersion.WithLabelValues("6.26.0")); v != 1 {
		t.Fatalf("expected latest 6.26.0 to be set, got %v", v)
	}
	if n := testutil.CollectAndCount(m.LatestVersion); n != 1 {
		t.Fatalf("expected a single version series, got %d", n)
	}
	if v := testutil.ToFloat64(m.VersionChecksTotal.WithLabelValues("error")); v != 1 {
		t.Fatalf("expected 1 failed check, got %v", v)
	}
}

func TestInstrumentAndHandler(t *testing.T) {
	m := New()
	h := m.Instrument("/api/targets", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/targets", nil))

	if v := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/targets", "418")); v != 1 {
		t.Fatalf("expected one recorded request, got %v", v)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(string(body), "jsenv_http_requests_total") {
		t.Fatal("expected response to contain jsenv_http_requests_total")
	}
}
