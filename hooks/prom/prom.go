// Package prom exports cache and API client events as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/fault"
)

// Metrics holds the collectors. It implements snapcache.Hooks and the
// client's call observer.
type Metrics struct {
	Hits             *prometheus.CounterVec
	Misses           *prometheus.CounterVec
	ExpiredTotal     *prometheus.CounterVec
	SelfHeals        *prometheus.CounterVec
	SetRejected      *prometheus.CounterVec
	LayerErrors      *prometheus.CounterVec
	StaleTotal       prometheus.Counter
	RevalidateErrors prometheus.Counter

	APICalls    *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
}

var _ snapcache.Hooks = (*Metrics)(nil)

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "hits_total",
			Help:      "Cache reads served, by category and layer.",
		}, []string{"category", "layer"}),

		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "misses_total",
			Help:      "Cache reads with no fresh entry in either layer.",
		}, []string{"category"}),

		ExpiredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "expired_total",
			Help:      "Expired entries deleted on read.",
		}, []string{"layer"}),

		SelfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "self_heals_total",
			Help:      "Unusable entries deleted on read.",
		}, []string{"layer", "reason"}),

		SetRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "set_rejected_total",
			Help:      "Writes a provider refused under pressure.",
		}, []string{"layer"}),

		LayerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "layer_errors_total",
			Help:      "Provider failures the cache degraded around.",
		}, []string{"op", "layer"}),

		StaleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "stale_served_total",
			Help:      "Network-first fallbacks to a cached value.",
		}),

		RevalidateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "revalidate_failed_total",
			Help:      "Failed background refreshes.",
		}),

		APICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapcache",
			Name:      "api_calls_total",
			Help:      "Remote API calls by operation and outcome kind.",
		}, []string{"op", "outcome"}),

		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "snapcache",
			Name:                            "api_call_duration_seconds",
			Help:                            "Remote API call duration in seconds, retries included.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.Hits,
		m.Misses,
		m.ExpiredTotal,
		m.SelfHeals,
		m.SetRejected,
		m.LayerErrors,
		m.StaleTotal,
		m.RevalidateErrors,
		m.APICalls,
		m.APIDuration,
	)

	return m
}

func (m *Metrics) Hit(category string, layer snapcache.Layer) {
	m.Hits.WithLabelValues(category, layer.String()).Inc()
}
func (m *Metrics) Miss(category string) { m.Misses.WithLabelValues(category).Inc() }
func (m *Metrics) Expired(_ string, layer snapcache.Layer) {
	m.ExpiredTotal.WithLabelValues(layer.String()).Inc()
}
func (m *Metrics) SelfHeal(_ string, layer snapcache.Layer, reason string) {
	m.SelfHeals.WithLabelValues(layer.String(), reason).Inc()
}
func (m *Metrics) ProviderSetRejected(_ string, layer snapcache.Layer) {
	m.SetRejected.WithLabelValues(layer.String()).Inc()
}
func (m *Metrics) LayerError(op, _ string, layer snapcache.Layer, _ error) {
	m.LayerErrors.WithLabelValues(op, layer.String()).Inc()
}
func (m *Metrics) StaleServed(string, error)      { m.StaleTotal.Inc() }
func (m *Metrics) RevalidateFailed(string, error) { m.RevalidateErrors.Inc() }

// ObserveCall records one remote API call. outcome is "ok" or the fault kind.
func (m *Metrics) ObserveCall(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = fault.Classify(err).String()
	}
	m.APICalls.WithLabelValues(op, outcome).Inc()
	m.APIDuration.WithLabelValues(op).Observe(d.Seconds())
}
