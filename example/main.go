// Example SDK usage: polls a simulated pod and logs every cycle.
//
// Usage:
//
//	go run ./example
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/podbridge"
	"github.com/jpalmerr/podbridge/example/mockpod"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// start the simulated pod
	go func() {
		if err := mockpod.ListenAndServe(":18080", logger); err != nil {
			logger.Error("mock pod failed", "error", err)
			os.Exit(1)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	b, err := podbridge.New(
		podbridge.WithHost("localhost"),
		podbridge.WithPort(18080),
		podbridge.WithPollInterval(5*time.Second),
		podbridge.WithListenPort(8090),
		podbridge.WithLogger(logger),
		podbridge.WithStatusCallback(func(r podbridge.StatusResult) {
			if r.Error != nil {
				logger.Warn("pod unavailable", "kind", r.FailureKind)
				return
			}
			for _, e := range r.Entities {
				if e.Side != "hub" && e.Available {
					logger.Info("reading", "entity", e.Name, "state", e.State)
				}
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create bridge", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("entities available", "url", "http://localhost:8090/api/entities")
	if err := b.Start(ctx); err != nil {
		slog.Error("bridge error", "error", err)
		os.Exit(1)
	}
}
