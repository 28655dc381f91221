// Package podbridge polls the local status API of an Eight Sleep pod and
// republishes its readings as sensor devices, one per bed side plus a hub.
//
// podbridge is SDK-first: the CLI in cmd/podbridge is a thin wrapper around
// this package. It follows the functional options pattern for configuration.
//
// # Quick Start
//
//	b, _ := podbridge.New(podbridge.WithHost("192.168.1.50"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	b.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
//	b, err := podbridge.New(
//	    podbridge.WithHost("192.168.1.50"),
//	    podbridge.WithPort(8080),
//	    podbridge.WithPollInterval(30 * time.Second),
//	    podbridge.WithListenPort(8090),
//	    podbridge.WithMQTT(podbridge.MQTTConfig{Broker: "tcp://192.168.1.10:1883"}),
//	)
//
// Host and port are checked by [ValidateTarget] before any network call; a
// rejected value is reported as a [*ConfigError] carrying the code
// "host_required" or "invalid_port".
//
// # Devices and entities
//
// Every poll of GET http://{host}:{port}/api/deviceStatus updates three
// devices. The left and right devices each carry the current and target
// temperature, the seconds remaining, the alarm state and the power state.
// The hub device carries the priming state, the water level and the sensor
// label. A failed poll marks every entity unavailable while keeping its last
// known value; a field missing from an otherwise good payload degrades only
// that entity.
//
// The poll interval can be changed while running with
// [Bridge.SetPollInterval] or PUT /api/options. The change applies from the
// next cycle.
//
// # Architecture
//
//   - internal/pod: the upstream payload schema and its per-side split
//   - internal/poller: HTTP fetcher and single-flight scheduler
//   - internal/coordinator: device registry, availability and fan-out
//   - internal/store: in-memory entity states with pub/sub
//   - internal/server: REST API, Server-Sent Events and the options flow
//   - internal/homeassistant: MQTT discovery publisher
//   - internal/metrics: Prometheus and DogStatsD exporters
//
// The internal packages are not part of the public API and may change
// without notice.
package podbridge
