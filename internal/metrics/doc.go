// Package metrics exports entity values and poll outcomes.
//
// [Collector] is a coordinator publisher backed by a private Prometheus
// registry, served at /metrics. When a statsd address is configured the same
// gauges are also sent to a DogStatsD agent.
package metrics
