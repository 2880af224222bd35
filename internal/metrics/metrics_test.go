package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveDenial("forbidden")
	m.ObserveRecalculation("status")
	m.ObserveReconcile("ok")
	if err := m.RegisterDB(nil); err != nil {
		t.Errorf("RegisterDB on nil Metrics = %v", err)
	}
}

func TestObserveDenial(t *testing.T) {
	m := New()
	m.ObserveDenial("forbidden")
	m.ObserveDenial("forbidden")
	m.ObserveDenial("unauthorized")

	if got := testutil.ToFloat64(m.AuthzDenialsTotal.WithLabelValues("forbidden")); got != 2 {
		t.Errorf("forbidden denials = %v, expected 2", got)
	}
	if got := testutil.ToFloat64(m.AuthzDenialsTotal.WithLabelValues("unauthorized")); got != 1 {
		t.Errorf("unauthorized denials = %v, expected 1", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRecalculation("status")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `taskforge_progress_recalculations_total{trigger="status"} 1`) {
		t.Errorf("metrics output missing recalculation counter:\n%s", body)
	}
}
