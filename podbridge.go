package podbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/podbridge/dashboard"
	"github.com/jpalmerr/podbridge/internal/coordinator"
	"github.com/jpalmerr/podbridge/internal/homeassistant"
	"github.com/jpalmerr/podbridge/internal/metrics"
	"github.com/jpalmerr/podbridge/internal/poller"
	"github.com/jpalmerr/podbridge/internal/server"
	"github.com/jpalmerr/podbridge/internal/store"
)

const (
	DefaultPort         = 8080
	DefaultPollInterval = 30 * time.Second
	DefaultTimeout      = 10 * time.Second
	DefaultListenPort   = 8090
)

// Bridge polls a pod's local status endpoint and republishes the readings as
// per-side sensor devices.
//
// A Bridge is created using [New] with functional options and started with
// [Bridge.Start]. The typical lifecycle is:
//
//	b, err := podbridge.New(podbridge.WithHost("192.168.1.50"))
//	if err != nil {
//	    slog.Error("failed to create bridge", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	b.Start(ctx) // blocks until context cancelled
type Bridge struct {
	target     poller.Target
	timeout    time.Duration
	listenPort int
	title      string
	logger     *slog.Logger

	mqtt          *homeassistant.Config
	statsdAddress string
	publishers    []coordinator.Publisher
	saver         IntervalSaver
	callbacks     []func(StatusResult)

	// optionsMu serializes SetPollInterval so the saved and running
	// intervals always agree
	optionsMu sync.Mutex

	mu        sync.Mutex
	interval  time.Duration
	started   bool
	scheduler *poller.Scheduler
}

// New creates a new [Bridge] with the given options.
//
// The host and port are checked with [ValidateTarget] before anything else;
// no network call is made by New. Other options have sensible defaults:
//   - Port: 8080
//   - Poll interval: 30 seconds
//   - Request timeout: 10 seconds
//   - Listen port: 8090
//
// Returns a [*ConfigError] for an invalid host or port, or an error if any
// option is invalid.
func New(opts ...Option) (*Bridge, error) {
	cfg := &bridgeConfig{
		port:         DefaultPort,
		statusPath:   poller.DefaultStatusPath,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		listenPort:   DefaultListenPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := ValidateTarget(cfg.host, cfg.port); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		target:        poller.Target{Host: cfg.host, Port: cfg.port, Path: cfg.statusPath},
		timeout:       cfg.timeout,
		listenPort:    cfg.listenPort,
		title:         cfg.title,
		logger:        logger,
		mqtt:          cfg.mqtt,
		statsdAddress: cfg.statsdAddress,
		publishers:    cfg.publishers,
		saver:         cfg.saver,
		callbacks:     cfg.callbacks,
		interval:      cfg.pollInterval,
	}, nil
}

// Start registers the devices, begins polling and serves the local API.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The pod is polled immediately, then every poll interval
//   - Every result updates the left, right and hub devices
//   - Entity states are served at http://localhost:<listen port>/api/entities
//   - A live dashboard is available at http://localhost:<listen port>
//
// On cancellation polling stops, publishers mark every entity offline and
// the HTTP server shuts down.
//
// Returns nil on graceful shutdown. Returns an error if a publisher cannot be
// set up or registered, or if the HTTP server fails to start. Start may only
// be called once.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.New("bridge already started")
	}
	b.started = true
	b.mu.Unlock()

	b.logger.Info("podbridge starting", "url", b.target.URL())
	b.logger.Info("polling configured", "interval", b.PollInterval().String(), "timeout", b.timeout.String())

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	entityStore := store.NewMemoryStore()

	collector, err := b.newCollector()
	if err != nil {
		return err
	}
	publishers := []coordinator.Publisher{storePublisher{store: entityStore}, collector}

	if b.mqtt != nil {
		ha, err := homeassistant.Connect(*b.mqtt, b.logger)
		if err != nil {
			_ = collector.Close()
			return fmt.Errorf("failed to set up home assistant discovery: %w", err)
		}
		publishers = append(publishers, ha)
	}
	publishers = append(publishers, b.publishers...)

	coord := coordinator.New(b.target, publishers, b.logger)
	if err := coord.Register(); err != nil {
		b.closePublishers(coord)
		return fmt.Errorf("failed to register devices: %w", err)
	}

	httpServer := server.NewServer(server.Config{
		Port:    b.listenPort,
		Store:   entityStore,
		Devices: deviceSource{coord: coord},
		Options: b,
		Metrics: collector.Handler(),
		Assets:  dashboard.Assets,
		Title:   b.title,
		Logger:  b.logger,
	})
	if err := httpServer.Start(ctx); err != nil {
		b.closePublishers(coord)
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	b.mu.Lock()
	scheduler := poller.NewScheduler(b.target, b.interval, b.timeout, b.handler(coord), b.logger)
	b.scheduler = scheduler
	b.mu.Unlock()

	scheduler.Start(ctx)

	<-ctx.Done()

	// teardown: stop polling before publishers go offline
	scheduler.Stop()
	b.mu.Lock()
	b.scheduler = nil
	b.mu.Unlock()
	b.closePublishers(coord)

	b.logger.Info("podbridge stopped")
	return nil
}

func (b *Bridge) newCollector() (*metrics.Collector, error) {
	if b.statsdAddress == "" {
		return metrics.New(nil, b.logger), nil
	}
	sd, err := metrics.NewStatsd(b.statsdAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to set up statsd: %w", err)
	}
	return metrics.New(sd, b.logger), nil
}

func (b *Bridge) closePublishers(coord *coordinator.Coordinator) {
	if err := coord.Close(); err != nil {
		b.logger.Warn("publisher close failed", "error", err)
	}
}

// handler applies each poll result, then runs the status callbacks.
func (b *Bridge) handler(coord *coordinator.Coordinator) poller.Handler {
	return func(ctx context.Context, r poller.Result) {
		coord.Apply(ctx, r)

		if len(b.callbacks) == 0 {
			return
		}
		res := newStatusResult(r, coord)
		for _, cb := range b.callbacks {
			invokeCallbackSafe(cb, res, b.logger)
		}
	}
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(StatusResult), result StatusResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"panic", fmt.Sprintf("%v", r),
				"correlation_id", uuid.NewString(),
				"cycle", result.Cycle,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(result)
}

// PollInterval returns the current interval between polls.
func (b *Bridge) PollInterval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

// SetPollInterval changes the poll interval without a restart.
//
// The interval is persisted first through the [IntervalSaver], if any. While
// running, the new interval applies from the next scheduled cycle; a poll in
// progress is not interrupted.
//
// Returns an error if d is not positive or the interval could not be saved.
func (b *Bridge) SetPollInterval(d time.Duration) error {
	if d <= 0 {
		return errors.New("poll interval must be positive")
	}

	b.optionsMu.Lock()
	defer b.optionsMu.Unlock()

	if b.saver != nil {
		if err := b.saver(d); err != nil {
			return fmt.Errorf("failed to save poll interval: %w", err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.interval = d
	if b.scheduler != nil {
		return b.scheduler.SetInterval(d)
	}
	return nil
}

// URL returns the status endpoint the bridge polls.
func (b *Bridge) URL() string {
	return b.target.URL()
}

// Host returns the configured pod host.
func (b *Bridge) Host() string {
	return b.target.Host
}

// Port returns the configured pod port.
func (b *Bridge) Port() int {
	return b.target.Port
}

// ListenPort returns the port of the local HTTP API.
func (b *Bridge) ListenPort() int {
	return b.listenPort
}

// Timeout returns the per-request timeout.
func (b *Bridge) Timeout() time.Duration {
	return b.timeout
}
