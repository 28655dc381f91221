package podbridge

import (
	"fmt"
	"strings"
)

// Setup error codes returned in [ConfigError.Code].
const (
	CodeHostRequired = "host_required"
	CodeInvalidPort  = "invalid_port"
)

// ConfigError reports a setup value that was rejected before any network
// call was made.
type ConfigError struct {
	// Field is the offending setting: "host" or "port".
	Field string

	// Code is a stable machine-readable reason, e.g. [CodeInvalidPort].
	Code string

	// Value is the rejected input as given.
	Value any
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case CodeHostRequired:
		return "host is required"
	case CodeInvalidPort:
		return fmt.Sprintf("invalid port %v: must be between 1 and 65535", e.Value)
	default:
		return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Code)
	}
}

// ValidateTarget checks the pod address the way the setup form does: the host
// must be non-empty and the port must lie in 1-65535.
//
// It never touches the network; [New], the config loader and the validate
// command all call it first.
func ValidateTarget(host string, port int) error {
	if strings.TrimSpace(host) == "" {
		return &ConfigError{Field: "host", Code: CodeHostRequired, Value: host}
	}
	if port < 1 || port > 65535 {
		return &ConfigError{Field: "port", Code: CodeInvalidPort, Value: port}
	}
	return nil
}
