package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	checklistOps      *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	importRows        *prometheus.CounterVec
	eventFailures     prometheus.Counter
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Collector {
	c := &Collector{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emmo_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emmo_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		checklistOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emmo_checklist_mutations_total",
				Help: "Checklist mutations by operation",
			},
			[]string{"op"},
		),
		statusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emmo_record_status_transitions_total",
				Help: "Maintenance record status changes",
			},
			[]string{"from", "to", "mode"},
		),
		importRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emmo_import_rows_total",
				Help: "Imported rows by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
		eventFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "emmo_event_publish_failures_total",
				Help: "Status change events that at least one sink failed to accept",
			},
		),
	}

	reg.MustRegister(c.httpRequests, c.httpDuration, c.checklistOps, c.statusTransitions, c.importRows, c.eventFailures)
	return c
}

// ObserveHTTP records one finished request.
func (c *Collector) ObserveHTTP(route, method string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) IncChecklistOp(op string) {
	if c == nil {
		return
	}
	c.checklistOps.WithLabelValues(op).Inc()
}

func (c *Collector) IncStatusTransition(from, to, mode string) {
	if c == nil {
		return
	}
	c.statusTransitions.WithLabelValues(from, to, mode).Inc()
}

func (c *Collector) AddImportRows(entity, outcome string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.importRows.WithLabelValues(entity, outcome).Add(float64(n))
}

func (c *Collector) IncEventFailure() {
	if c == nil {
		return
	}
	c.eventFailures.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
