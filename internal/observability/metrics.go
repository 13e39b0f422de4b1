// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the channel cache and its oracle transport.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChannelCollector bundles Prometheus metrics for the channel-state cache
// and the oracle round trips it performs. All methods are nil-safe so
// components can run without metrics wired.
type ChannelCollector struct {
	gatherer prometheus.Gatherer

	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	OptimizerBypasses prometheus.Counter

	OracleRoundtrips  *prometheus.CounterVec
	RoundtripDuration prometheus.Histogram
}

// NewChannelCollector registers the cache metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewChannelCollector(reg prometheus.Registerer) (*ChannelCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	hits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "channel_cache_hits_total",
		Help: "Channel-state lookups served from the cache.",
	}), "channel_cache_hits_total")
	if err != nil {
		return nil, err
	}
	misses, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "channel_cache_misses_total",
		Help: "Channel-state lookups that required an oracle round trip.",
	}), "channel_cache_misses_total")
	if err != nil {
		return nil, err
	}
	bypasses, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "channel_optimizer_bypass_total",
		Help: "Lookups answered by the free-space bound without touching cache or oracle.",
	}), "channel_optimizer_bypass_total")
	if err != nil {
		return nil, err
	}

	roundtrips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_roundtrips_total",
		Help: "Request/reply exchanges with the ray-tracing oracle, labeled by request kind.",
	}, []string{"kind"})
	roundtrips, err = registerCounterVec(reg, roundtrips, "oracle_roundtrips_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oracle_roundtrip_duration_seconds",
		Help:    "Wall-clock latency of oracle round trips in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "oracle_roundtrip_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &ChannelCollector{
		gatherer:          gatherer,
		CacheHits:         hits,
		CacheMisses:       misses,
		OptimizerBypasses: bypasses,
		OracleRoundtrips:  roundtrips,
		RoundtripDuration: duration,
	}, nil
}

// RecordHit increments the cache-hit counter.
func (c *ChannelCollector) RecordHit() {
	if c != nil && c.CacheHits != nil {
		c.CacheHits.Inc()
	}
}

// RecordMiss increments the cache-miss counter.
func (c *ChannelCollector) RecordMiss() {
	if c != nil && c.CacheMisses != nil {
		c.CacheMisses.Inc()
	}
}

// RecordBypass increments the optimizer-bypass counter.
func (c *ChannelCollector) RecordBypass() {
	if c != nil && c.OptimizerBypasses != nil {
		c.OptimizerBypasses.Inc()
	}
}

// RecordRoundtrip records one oracle exchange of the given kind and its
// wall-clock duration in seconds.
func (c *ChannelCollector) RecordRoundtrip(kind string, seconds float64) {
	if c == nil {
		return
	}
	if c.OracleRoundtrips != nil {
		c.OracleRoundtrips.WithLabelValues(kind).Inc()
	}
	if c.RoundtripDuration != nil {
		c.RoundtripDuration.Observe(seconds)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ChannelCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
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

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
