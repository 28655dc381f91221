// Package server provides the HTTP API for podbridge.
//
// This package is internal to podbridge and handles all HTTP concerns:
//
//   - REST API: devices, entity states and the options flow under "/api"
//   - Server-Sent Events: real-time entity updates at "/api/sse"
//   - Metrics: Prometheus exposition at "/metrics" when configured
//
// Routing uses httprouter. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
package server
