// Package metrics exposes Prometheus instruments for checks, KB updates and
// HTTP traffic on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skufu/medsafe/internal/model"
)

const namespace = "medsafe"

// Metrics holds every instrument. The zero value is not usable; call New.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal     *prometheus.CounterVec
	CheckRejections prometheus.Counter
	UnresolvedNames prometheus.Counter
	CheckDuration   prometheus.Histogram
	CheckCacheHits  prometheus.Counter
	KBUpdatesTotal  *prometheus.CounterVec
	KBDrugs         prometheus.Gauge
	KBFacts         prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers all instruments, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Completed interaction checks by aggregate risk level.",
		}, []string{"risk_level"}),
		CheckRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_rejections_total",
			Help:      "Checks rejected for insufficient input.",
		}),
		UnresolvedNames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_names_total",
			Help:      "Input names that matched no known drug.",
		}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Time spent in one interaction check.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		CheckCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_cache_hits_total",
			Help:      "Checks answered from the result cache.",
		}),
		KBUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kb_updates_total",
			Help:      "Knowledge base update attempts by operation and outcome.",
		}, []string{"op", "outcome"}),
		KBDrugs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kb_drugs",
			Help:      "Canonical drugs in the published knowledge base.",
		}),
		KBFacts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kb_facts",
			Help:      "Interaction facts in the published knowledge base.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ChecksTotal,
		m.CheckRejections,
		m.UnresolvedNames,
		m.CheckDuration,
		m.CheckCacheHits,
		m.KBUpdatesTotal,
		m.KBDrugs,
		m.KBFacts,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveCheck records one completed check.
func (m *Metrics) ObserveCheck(level model.Severity, unresolved int, took time.Duration, cached bool) {
	m.ChecksTotal.WithLabelValues(string(level)).Inc()
	m.UnresolvedNames.Add(float64(unresolved))
	m.CheckDuration.Observe(took.Seconds())
	if cached {
		m.CheckCacheHits.Inc()
	}
}

// ObserveRejection records a check refused before any work was done.
func (m *Metrics) ObserveRejection() {
	m.CheckRejections.Inc()
}

// ObserveKBUpdate has the shape of kb.UpdateObserver.
func (m *Metrics) ObserveKBUpdate(op string, err error, drugs, facts int) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.KBUpdatesTotal.WithLabelValues(op, outcome).Inc()
	m.KBDrugs.Set(float64(drugs))
	m.KBFacts.Set(float64(facts))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
