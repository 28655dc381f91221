package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/podbridge/config"
	"github.com/jpalmerr/podbridge/internal/coordinator"
	"github.com/jpalmerr/podbridge/internal/pod"
	"github.com/jpalmerr/podbridge/internal/poller"
)

// probeCmd fetches the pod status once and prints it per side.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch the pod status once",
	Long: `Fetch the pod status once and print every sensor per side.

Fields missing from the payload are listed as unavailable. On a failed fetch
the failure kind (unreachable, timeout, bad_response) is reported and the
command exits with code 1.

Example:
  podbridge probe -c podbridge.yaml`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = probeCmd.MarkFlagRequired("config")
}

func runProbe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	target := poller.Target{Host: cfg.Host, Port: cfg.Port, Path: cfg.StatusPath}
	client := poller.NewClient()
	defer client.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := client.Fetch(ctx, target.URL(), cfg.Timeout.Duration())
	if err != nil {
		return fmt.Errorf("probe %s failed (%s): %w", target.URL(), poller.Kind(err), err)
	}

	printSnapshot(cmd.OutOrStdout(), target.URL(), pod.Split(raw))
	return nil
}

func printSnapshot(w io.Writer, url string, snap pod.Snapshot) {
	fmt.Fprintf(w, "Pod status from %s\n", url)

	for _, side := range pod.Sides {
		st := snap.Side(side)
		fmt.Fprintf(w, "\n%s:\n", side)
		if st == nil {
			fmt.Fprintf(w, "  (side missing from payload)\n")
			continue
		}
		for _, def := range coordinator.SideDefinitions {
			printValue(w, def, st.Value)
		}
	}

	fmt.Fprintf(w, "\nhub:\n")
	for _, def := range coordinator.HubDefinitions {
		printValue(w, def, snap.Hub.Value)
	}
}

func printValue(w io.Writer, def coordinator.Definition, lookup func(pod.Field) (any, bool)) {
	raw, ok := lookup(def.Field)
	if !ok {
		fmt.Fprintf(w, "  %-24s unavailable\n", def.Name+":")
		return
	}
	v := coordinator.Value{Raw: raw, Available: true}
	state := v.State(def.Binary)
	if def.Unit != "" {
		state += " " + def.Unit
	}
	fmt.Fprintf(w, "  %-24s %s\n", def.Name+":", state)
}
