package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes route-service Prometheus metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	CacheLookups        *prometheus.CounterVec
	CacheEntries        prometheus.Gauge
	NormalizeDuration   *prometheus.HistogramVec
	EstimatesOverBudget prometheus.Counter
}

// NewMetrics registers service metrics against the provided registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_cache_lookups_total",
		Help: "Route cache lookups partitioned by result (hit or miss).",
	}, []string{"result"})
	lookups, err := registerCounterVec(reg, lookups, "route_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	entries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "route_cache_entries",
		Help: "Number of live entries in the route cache.",
	})
	entries, err = registerGauge(reg, entries, "route_cache_entries")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "route_normalize_duration_seconds",
		Help:    "Duration of normalization and estimation calls by kind.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"kind"})
	duration, err = registerHistogramVec(reg, duration, "route_normalize_duration_seconds")
	if err != nil {
		return nil, err
	}

	overBudget := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_estimates_over_budget_total",
		Help: "Offline region estimates whose size exceeded the pack cap.",
	})
	overBudget, err = registerCounter(reg, overBudget, "offline_estimates_over_budget_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:            gatherer,
		CacheLookups:        lookups,
		CacheEntries:        entries,
		NormalizeDuration:   duration,
		EstimatesOverBudget: overBudget,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

// ObserveCacheLookup records a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil || m.CacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// SetCacheEntries updates the cache size gauge.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil || m.CacheEntries == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// ObserveNormalize records how long one engine call took.
func (m *Metrics) ObserveNormalize(kind string, d time.Duration) {
	if m == nil || m.NormalizeDuration == nil {
		return
	}
	m.NormalizeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncOverBudget counts an estimate that exceeded the cap.
func (m *Metrics) IncOverBudget() {
	if m == nil || m.EstimatesOverBudget == nil {
		return
	}
	m.EstimatesOverBudget.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
