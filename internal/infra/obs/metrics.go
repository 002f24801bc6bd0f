package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "travelbook"

// Metrics owns the engine's collectors on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	bookings     *prometheus.CounterVec
	rollbacks    *prometheus.CounterVec
	repairs      *prometheus.CounterVec
	bulk         *prometheus.CounterVec
	lockWait     prometheus.Histogram
	outbox       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
			[]string{"route", "method", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Name: "http_request_duration_seconds",
				Help:    "HTTP request duration seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		bookings: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "booking_requests_total", Help: "Booking requests by outcome."},
			[]string{"outcome"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "compensations_total", Help: "Compensating availability writes by outcome."},
			[]string{"outcome"}, // restored|released|exhausted
		),
		repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "maintenance_repairs_total", Help: "Records repaired by background jobs."},
			[]string{"job"},
		),
		bulk: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "availability_bulk_total", Help: "Bulk availability mutations by outcome."},
			[]string{"outcome"},
		),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "resource_lock_wait_seconds",
			Help:    "Time spent waiting for a resource lock.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		outbox: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "outbox_events_total", Help: "Outbox deliveries by result."},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpLatency, m.bookings, m.rollbacks, m.repairs, m.bulk, m.lockWait, m.outbox,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, dur time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func (m *Metrics) CountBooking(outcome string) {
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CountRollback(outcome string) {
	m.rollbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CountRepairs(job string, n int) {
	m.repairs.WithLabelValues(job).Add(float64(n))
}

func (m *Metrics) CountBulk(outcome string) {
	m.bulk.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	m.lockWait.Observe(d.Seconds())
}

func (m *Metrics) CountOutbox(result string) {
	m.outbox.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on a dedicated listener when addr is set.
func (m *Metrics) Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
