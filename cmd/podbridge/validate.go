package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/podbridge"
	"github.com/jpalmerr/podbridge/config"
)

// validateCmd validates a config file without contacting the pod.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a podbridge configuration file without contacting the pod.

This command parses the YAML, expands environment variables, and checks the
pod host and port the same way the setup form does. Rejected values are
reported with a stable code (host_required, invalid_port).

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  podbridge validate -c podbridge.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		var cfgErr *podbridge.ConfigError
		if errors.As(err, &cfgErr) {
			return fmt.Errorf("invalid config: %w (code %s)", err, cfgErr.Code)
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	mqtt := "disabled"
	if cfg.MQTT.Broker != "" {
		mqtt = cfg.MQTT.Broker
	}
	statsd := "disabled"
	if cfg.Metrics.StatsdAddress != "" {
		statsd = cfg.Metrics.StatsdAddress
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Pod:           %s:%d%s\n", cfg.Host, cfg.Port, cfg.StatusPath)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Timeout:       %s\n", cfg.Timeout.Duration())
	fmt.Printf("  Listen port:   %d\n", cfg.ListenPort)
	fmt.Printf("  MQTT:          %s\n", mqtt)
	fmt.Printf("  Statsd:        %s\n", statsd)

	return nil
}
