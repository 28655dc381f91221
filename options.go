package podbridge

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jpalmerr/podbridge/internal/coordinator"
	"github.com/jpalmerr/podbridge/internal/homeassistant"
)

// bridgeConfig holds mutable state during Bridge construction.
type bridgeConfig struct {
	host         string
	port         int
	statusPath   string
	pollInterval time.Duration
	timeout      time.Duration
	listenPort   int
	title        string
	logger       *slog.Logger

	mqtt          *homeassistant.Config
	statsdAddress string
	publishers    []coordinator.Publisher
	saver         IntervalSaver
	callbacks     []func(StatusResult)
}

// Option is a function that configures a [Bridge] instance during construction.
//
// Options return an error if validation fails. Host and port are validated
// together by [New] through [ValidateTarget], so their options never fail.
type Option func(*bridgeConfig) error

// IntervalSaver persists a poll interval chosen through the options flow.
type IntervalSaver func(time.Duration) error

// WithHost sets the hostname or IP address of the pod's local API. Required.
func WithHost(host string) Option {
	return func(cfg *bridgeConfig) error {
		cfg.host = host
		return nil
	}
}

// WithPort sets the port of the pod's local API. Defaults to 8080.
func WithPort(port int) Option {
	return func(cfg *bridgeConfig) error {
		cfg.port = port
		return nil
	}
}

// WithStatusPath overrides the status endpoint path. Defaults to
// /api/deviceStatus.
//
// Returns an error if the path does not start with "/".
func WithStatusPath(path string) Option {
	return func(cfg *bridgeConfig) error {
		if len(path) == 0 || path[0] != '/' {
			return errors.New("status path must start with /")
		}
		cfg.statusPath = path
		return nil
	}
}

// WithPollInterval sets how often the pod is polled. Defaults to 30 seconds.
//
// The interval can be changed while running with [Bridge.SetPollInterval].
//
// Example:
//
//	b, err := podbridge.New(
//	    podbridge.WithHost("192.168.1.50"),
//	    podbridge.WithPollInterval(10 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *bridgeConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithTimeout bounds every status request. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *bridgeConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithListenPort sets the port of the local HTTP API. Defaults to 8090.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithListenPort(port int) Option {
	return func(cfg *bridgeConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("listen port must be between 1 and 65535")
		}
		cfg.listenPort = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *bridgeConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// MQTTConfig configures Home Assistant MQTT discovery.
type MQTTConfig struct {
	// Broker is a broker URL, e.g. tcp://192.168.1.10:1883.
	Broker   string
	Username string
	Password string
	ClientID string

	// DiscoveryPrefix defaults to "homeassistant".
	DiscoveryPrefix string

	// TopicPrefix defaults to "podbridge".
	TopicPrefix string
}

// WithMQTT publishes every device to Home Assistant through MQTT discovery.
// The broker is dialled by [Bridge.Start].
//
// Returns an error if no broker is given.
func WithMQTT(m MQTTConfig) Option {
	return func(cfg *bridgeConfig) error {
		if m.Broker == "" {
			return errors.New("mqtt broker is required")
		}
		cfg.mqtt = &homeassistant.Config{
			Broker:          m.Broker,
			Username:        m.Username,
			Password:        m.Password,
			ClientID:        m.ClientID,
			DiscoveryPrefix: m.DiscoveryPrefix,
			TopicPrefix:     m.TopicPrefix,
		}
		return nil
	}
}

// WithStatsd additionally sends entity values and poll counts to a DogStatsD
// agent at addr (host:port).
func WithStatsd(addr string) Option {
	return func(cfg *bridgeConfig) error {
		if addr == "" {
			return errors.New("statsd address cannot be empty")
		}
		cfg.statsdAddress = addr
		return nil
	}
}

// WithIntervalSaver persists poll interval changes made through
// [Bridge.SetPollInterval]. The saver runs before the new interval is applied;
// if it fails the change is rejected.
//
// Nil savers are silently ignored.
func WithIntervalSaver(save IntervalSaver) Option {
	return func(cfg *bridgeConfig) error {
		cfg.saver = save
		return nil
	}
}

// WithStatusCallback registers a function to be called after every poll
// cycle has been applied.
//
// Callbacks are invoked synchronously from the poll goroutine and must not
// block; the next poll waits for them. Panics are recovered and logged.
//
// Example:
//
//	b, err := podbridge.New(
//	    podbridge.WithHost("pod.local"),
//	    podbridge.WithStatusCallback(func(r podbridge.StatusResult) {
//	        if r.Error != nil {
//	            log.Printf("pod unreachable: %v", r.Error)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(StatusResult)) Option {
	return func(cfg *bridgeConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "podbridge".
func WithTitle(title string) Option {
	return func(cfg *bridgeConfig) error {
		cfg.title = title
		return nil
	}
}
