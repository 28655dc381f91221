package metrics

import (
	"fmt"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// StatsdClient is the subset of *statsd.Client the collector uses.
type StatsdClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Incr(name string, tags []string, rate float64) error
	Close() error
}

// NewStatsd connects a DogStatsD client to addr. Metric names are prefixed
// with "podbridge.".
func NewStatsd(addr string) (*statsd.Client, error) {
	client, err := statsd.New(addr, statsd.WithNamespace("podbridge."))
	if err != nil {
		return nil, fmt.Errorf("statsd client for %s: %w", addr, err)
	}
	return client, nil
}

// FormatTag renders a key:value statsd tag.
func FormatTag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}
