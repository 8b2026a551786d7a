// Package metrics holds the Prometheus collectors of the journey services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	deposits        *prometheus.CounterVec
	depositedBRL    prometheus.Counter
	rateFetches     *prometheus.CounterVec
	exchangeRate    prometheus.Gauge
	eventsPublished *prometheus.CounterVec
	mirrorRows      *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "journey_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_http_requests_total",
				Help: "Total HTTP requests by route and status class.",
			},
			[]string{"method", "route", "status"},
		),
		deposits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_deposits_total",
				Help: "Deposits recorded, split by whether they were tagged to an objective.",
			},
			[]string{"tagged"},
		),
		depositedBRL: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "journey_deposited_brl_total",
				Help: "Sum of positive deposit amounts in BRL.",
			},
		),
		rateFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_rate_fetches_total",
				Help: "External USD/BRL quote lookups by result.",
			},
			[]string{"result"},
		),
		exchangeRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "journey_exchange_rate",
				Help: "Last persisted USD/BRL rate.",
			},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_ledger_events_total",
				Help: "Ledger events published by type and result.",
			},
			[]string{"type", "result"},
		),
		mirrorRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_mirror_rows_total",
				Help: "Statement mirror operations by action and result.",
			},
			[]string{"action", "result"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journey_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	m.requestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
}

// IncrDeposit counts a recorded deposit. Negative amounts are counted but not summed.
func (m *Metrics) IncrDeposit(tagged bool, amountBRL float64) {
	label := "false"
	if tagged {
		label = "true"
	}
	m.deposits.WithLabelValues(label).Inc()
	if amountBRL > 0 {
		m.depositedBRL.Add(amountBRL)
	}
}

func (m *Metrics) IncrRateFetch(result string) {
	m.rateFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) SetExchangeRate(rate float64) {
	m.exchangeRate.Set(rate)
}

func (m *Metrics) IncrEvent(eventType, result string) {
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) IncrMirror(action, result string) {
	m.mirrorRows.WithLabelValues(action, result).Inc()
}

func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// CounterValue reads the current value of a labelled counter. Used by health
// output and tests.
func CounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// Deposits returns the deposit counter for a tagged label value.
func (m *Metrics) Deposits(tagged string) float64 {
	return CounterValue(m.deposits, tagged)
}

// RateFetches returns the quote lookup counter for a result label.
func (m *Metrics) RateFetches(result string) float64 {
	return CounterValue(m.rateFetches, result)
}

func (m *Metrics) MirrorOps(action, result string) float64 {
	return CounterValue(m.mirrorRows, action, result)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
