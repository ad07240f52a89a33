package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, m *HTTPServerMetrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matches(metric, labels) {
				if c := metric.GetCounter(); c != nil {
					return c.GetValue()
				}
				if h := metric.GetHistogram(); h != nil {
					return float64(h.GetSampleCount())
				}
			}
		}
	}
	return 0
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if pair.GetValue() != want {
				return false
			}
			found++
		}
	}
	return found == len(labels)
}

func TestMiddlewareCountsRequestsByStatus(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/chat", nil))

	got := counterValue(t, m, "grounded_http_requests_total", map[string]string{"path": "/v1/chat", "status": "418"})
	if got != 1 {
		t.Fatalf("expected one request counted, got %v", got)
	}
}

func TestPipelineMetricsShareRegistry(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	p := NewPipelineMetrics("api", m.Registry())

	p.ObserveQuery("degraded", 2*time.Second)
	p.ObserveDegradation("ranking", "embedding unavailable")
	p.ObserveFetch("render", "ok")
	p.ObserveCacheLookup("search", true)
	p.ObserveConfidence(0.42)
	p.ObserveLimiterWait(0)
	p.ObserveLimiterWait(3 * time.Second)

	checks := []struct {
		name   string
		labels map[string]string
	}{
		{"grounded_pipeline_queries_total", map[string]string{"status": "degraded"}},
		{"grounded_pipeline_degradations_total", map[string]string{"stage": "ranking"}},
		{"grounded_acquisition_fetches_total", map[string]string{"method": "render", "result": "ok"}},
		{"grounded_cache_lookups_total", map[string]string{"cache": "search", "result": "hit"}},
		{"grounded_pipeline_confidence", map[string]string{}},
		{"grounded_generation_limiter_wait_seconds", map[string]string{}},
	}
	for _, c := range checks {
		if got := counterValue(t, m, c.name, c.labels); got != 1 {
			t.Fatalf("%s: expected 1 observation, got %v", c.name, got)
		}
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "grounded_pipeline_queries_total") {
		t.Fatalf("expected pipeline metrics on the scrape endpoint")
	}
}

func TestRecordRejection(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRejection("api", "rate_limited")
	m.RecordRejection("api", "")
	if got := counterValue(t, m, "grounded_http_rejected_total", map[string]string{"reason": "rate_limited"}); got != 1 {
		t.Fatalf("expected one rate-limited rejection, got %v", got)
	}
	if got := counterValue(t, m, "grounded_http_rejected_total", map[string]string{"reason": "unknown"}); got != 1 {
		t.Fatalf("expected one unknown rejection, got %v", got)
	}
}
