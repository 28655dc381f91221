// Package main is the entry point for the podbridge CLI.
//
// podbridge can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	podbridge serve -c podbridge.yaml    # Start polling and publishing
//	podbridge validate -c podbridge.yaml # Validate configuration
//	podbridge probe -c podbridge.yaml    # Fetch the pod status once
//	podbridge version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "podbridge",
	Short: "Bridge an Eight Sleep pod's local API to sensor devices",
	Long: `podbridge polls the local status API of an Eight Sleep pod and
republishes the readings as sensor devices: one per bed side plus a hub.

Readings are served on a local REST/SSE API and, when configured, announced
to Home Assistant through MQTT discovery.

Quick start:
  1. Create a config file (podbridge.yaml)
  2. Run: podbridge serve -c podbridge.yaml
  3. Open http://localhost:8090/api/entities

Example config:
  host: 192.168.1.50
  port: 8080
  poll_interval: 30s
  mqtt:
    broker: tcp://192.168.1.10:1883`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this podbridge binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("podbridge %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
