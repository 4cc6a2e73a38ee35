package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestManagerRecordsOnPrivateRegistry(t *testing.T) {
	t.Parallel()

	m := NewManager(WithNamespace("test"), WithSubsystem("unit"))
	m.RecordPageFetch(OutcomeSuccess)
	m.RecordPageFetch(OutcomeSuccess)
	m.RecordPageFetch(OutcomeError)

	if got := testutil.ToFloat64(m.pagesFetched.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successful fetches, got %v", got)
	}
	if got := testutil.ToFloat64(m.pagesFetched.WithLabelValues(OutcomeError)); got != 1 {
		t.Fatalf("expected 1 failed fetch, got %v", got)
	}
}

func TestManagerUsesProvidedRegistry(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := NewManager(WithRegistry(registry))
	m.ObserveLLMRequest("openai", OutcomeSuccess, 200*time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "prospect_scanner_llm_requests_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("llm counter not registered on provided registry")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.ObserveHTTPRequest("/health", http.MethodGet, "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `prospect_scanner_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Fatalf("metric missing from output:\n%s", rec.Body.String())
	}
}

func TestNilManagerIsNoop(t *testing.T) {
	t.Parallel()

	var m *Manager
	m.RecordPageFetch(OutcomeSuccess)
	m.ObserveCrawl(time.Second)
	m.RecordProspectSaved(OutcomeError)
	m.RecordTraining(OutcomeSuccess)
	m.ObserveScoring(time.Millisecond)
	if m.Registry() != nil {
		t.Fatal("nil manager must not expose a registry")
	}
	if m.Handler() == nil {
		t.Fatal("nil manager must still return a handler")
	}
}
