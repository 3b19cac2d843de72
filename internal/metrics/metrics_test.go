package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveRequestUsesPatternLabel(t *testing.T) {
	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/catalog", "200")
	before := counterValue(t, counter)

	ObserveRequest(http.MethodGet, "/api/v1/catalog", http.StatusOK, 5*time.Millisecond)

	if after := counterValue(t, counter); after != before+1 {
		t.Fatalf("expected counter to grow by one, got %v -> %v", before, after)
	}
}

func TestEmptyPathIsLabelledUndefined(t *testing.T) {
	ObserveRequest(http.MethodPost, "", http.StatusNotFound, time.Millisecond)

	if got := counterValue(t, HTTPRequestsTotal.WithLabelValues(http.MethodPost, "undefined", "404")); got < 1 {
		t.Fatalf("expected undefined label to be recorded")
	}
}

func TestMustRegisterOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected registered collectors to be gathered")
	}
}
