// Standalone mock pod for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/podbridge serve -c example/podbridge.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jpalmerr/podbridge/example/mockpod"
)

func main() {
	fmt.Println("Mock pod starting on :18080")
	fmt.Println("Serving GET /api/deviceStatus; about 1 in 10 requests fails")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := mockpod.ListenAndServe(":18080", logger); err != nil {
		logger.Error("mock pod error", "error", err)
		os.Exit(1)
	}
}
