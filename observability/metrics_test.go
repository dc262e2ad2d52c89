package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.IngestBatches.WithLabelValues("acme").Inc()
	m.IngestEvents.WithLabelValues("acme", "heartbeat").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rw := httptest.NewRecorder()
	m.Handler().ServeHTTP(rw, req)

	if rw.Result().StatusCode != 200 {
		t.Fatalf("expected 200, got %d", rw.Result().StatusCode)
	}
	body := rw.Body.String()
	if !strings.Contains(body, "hiveboard_ingest_batches_total") {
		t.Fatalf("expected ingest_batches_total metric in output, got:\n%s", body)
	}
	if !strings.Contains(body, `tenant_id="acme"`) {
		t.Fatalf("expected tenant_id label in output, got:\n%s", body)
	}
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.AlertsFired.WithLabelValues("acme", "critical").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rw := httptest.NewRecorder()
	b.Handler().ServeHTTP(rw, req)

	if strings.Contains(rw.Body.String(), "hiveboard_alerts_fired_total") {
		t.Fatal("expected separate Metrics instances to use independent registries")
	}
}
