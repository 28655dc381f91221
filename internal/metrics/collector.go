package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/podbridge/internal/coordinator"
	"github.com/jpalmerr/podbridge/internal/poller"
)

// poll result label for a successful cycle
const resultOK = "ok"

// Collector records entity values and poll outcomes.
//
// It implements [coordinator.Publisher] and [coordinator.CycleObserver].
// Non-numeric values (such as the sensor label) are not exported as gauges.
type Collector struct {
	registry *prometheus.Registry

	entityValue     *prometheus.GaugeVec
	entityAvailable *prometheus.GaugeVec
	polls           *prometheus.CounterVec
	pollDuration    prometheus.Histogram

	statsd StatsdClient
	logger *slog.Logger
}

// New creates a [Collector] with its own registry. sd may be nil.
func New(sd StatsdClient, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		entityValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "podbridge_entity_value",
				Help: "Latest value of a pod sensor. Booleans are exported as 0 or 1.",
			},
			[]string{"unique_id", "side", "field"},
		),
		entityAvailable: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "podbridge_entity_available",
				Help: "1 when the sensor's latest value is current, 0 when unavailable.",
			},
			[]string{"unique_id", "side"},
		),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podbridge_polls_total",
				Help: "Status polls by result: ok, unreachable, timeout or bad_response.",
			},
			[]string{"result"},
		),
		pollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "podbridge_poll_duration_seconds",
				Help:    "Latency of status polls, successful or not.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		statsd: sd,
		logger: logger,
	}
	c.registry.MustRegister(c.entityValue, c.entityAvailable, c.polls, c.pollDuration)
	return c
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Register seeds the availability gauge of every entity at 0.
func (c *Collector) Register(dev *coordinator.Device) error {
	for _, e := range dev.Entities {
		c.entityAvailable.WithLabelValues(e.UniqueID, dev.Side.String()).Set(0)
	}
	return nil
}

// Update records the entity's value and availability.
func (c *Collector) Update(e *coordinator.Entity, v coordinator.Value) {
	side := e.Device.Side.String()

	available := 0.0
	if v.Available {
		available = 1
	}
	c.entityAvailable.WithLabelValues(e.UniqueID, side).Set(available)

	value, ok := numeric(v.Raw)
	if !ok {
		return
	}
	c.entityValue.WithLabelValues(e.UniqueID, side, string(e.Field)).Set(value)

	if c.statsd != nil && v.Available {
		tags := []string{FormatTag("side", side), FormatTag("entity", e.Definition.Key)}
		if err := c.statsd.Gauge("entity."+e.Definition.Key, value, tags, 1); err != nil {
			c.logger.Warn("statsd gauge failed", "entity", e.UniqueID, "error", err)
		}
	}
}

// ObserveCycle counts the poll and records its latency.
func (c *Collector) ObserveCycle(r poller.Result) {
	result := resultOK
	if r.Err != nil {
		result = poller.Kind(r.Err).String()
		if result == "" {
			result = poller.Unreachable.String()
		}
	}
	c.polls.WithLabelValues(result).Inc()
	c.pollDuration.Observe(r.Latency.Seconds())

	if c.statsd != nil {
		if err := c.statsd.Incr("polls", []string{FormatTag("result", result)}, 1); err != nil {
			c.logger.Warn("statsd increment failed", "error", err)
		}
	}
}

// Close flushes and closes the statsd client, if any.
func (c *Collector) Close() error {
	if c.statsd == nil {
		return nil
	}
	return c.statsd.Close()
}

func numeric(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
