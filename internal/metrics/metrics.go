package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	ShiftsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shifts_opened_total",
			Help: "Shifts opened, by location",
		},
		[]string{"lokasi"},
	)

	ShiftsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shifts_closed_total",
			Help: "Shifts closed, by location and variance status",
		},
		[]string{"lokasi", "status"},
	)

	ShiftCloseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shift_close_failures_total",
			Help: "Close attempts that failed after validation",
		},
	)

	TransactionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shift_transactions_recorded_total",
			Help: "Transactions appended to open shifts, by type",
		},
		[]string{"type"},
	)

	ChangeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_total",
			Help: "Change feed events published, by table",
		},
		[]string{"table"},
	)

	StaleShifts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stale_open_shifts",
			Help: "Open shifts older than the stale threshold at the last sweep",
		},
	)
)

func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ShiftsOpened,
		ShiftsClosed,
		ShiftCloseFailures,
		TransactionsRecorded,
		ChangeEvents,
		StaleShifts,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one served request. path should be the matched
// route pattern, never the raw URL.
func ObserveRequest(method string, path string, status int, elapsed time.Duration) {
	if path == "" {
		path = "undefined"
	}
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}
