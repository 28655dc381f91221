package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/podbridge"
	"github.com/jpalmerr/podbridge/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts polling the pod and publishing its devices.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the pod and publish its devices",
	Long: `Poll the pod and publish its devices.

The bridge will:
  - Load configuration from the specified YAML file
  - Poll the pod immediately, then every poll_interval
  - Serve entity states on the configured listen_port
  - Announce devices over MQTT when mqtt.broker is set

Changing the poll interval through PUT /api/options writes the new value
back to the config file.

The bridge runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  podbridge serve -c podbridge.yaml
  podbridge serve --config /etc/podbridge/podbridge.yaml --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().Bool("debug", false, "log every poll cycle")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"host", cfg.Host,
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
		"mqtt", cfg.MQTT.Broker != "",
	)

	opts := append(config.BuildOptions(cfg),
		podbridge.WithLogger(logger),
		podbridge.WithIntervalSaver(config.Saver(configFile)),
	)

	b, err := podbridge.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- b.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("bridge error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("bridge error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
