// Package config provides YAML configuration parsing for podbridge.
//
// This package enables running podbridge as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	host: ${POD_HOST}
//	port: 8080
//	poll_interval: 30s
//
//	mqtt:
//	  broker: tcp://192.168.1.10:1883
//	  password: ${MQTT_PASSWORD:-}
//
//	metrics:
//	  statsd_address: 127.0.0.1:8125
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/podbridge"
)

// minPollInterval is the minimum allowed polling interval.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for podbridge.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Host is the pod's hostname or IP address. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Host string `yaml:"host"`

	// Port is the pod's local API port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between polls. Accepts duration strings like
	// "30s" or a whole number of seconds. Defaults to 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// Timeout bounds each status request. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// StatusPath is the status endpoint path. Defaults to /api/deviceStatus.
	StatusPath string `yaml:"status_path"`

	// ListenPort is the port of the local HTTP API. Defaults to 8090.
	ListenPort int `yaml:"listen_port"`

	// Title is the dashboard title. Defaults to "podbridge" if not set.
	Title string `yaml:"title"`

	// MQTT enables Home Assistant discovery when Broker is set.
	MQTT MQTTConfig `yaml:"mqtt"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// MQTTConfig configures the Home Assistant MQTT publisher.
type MQTTConfig struct {
	// Broker is a broker URL, e.g. tcp://192.168.1.10:1883. Empty disables MQTT.
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`

	// DiscoveryPrefix defaults to "homeassistant".
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// TopicPrefix defaults to "podbridge".
	TopicPrefix string `yaml:"topic_prefix"`
}

// MetricsConfig configures optional metric sinks. Prometheus metrics are
// always served on /metrics.
type MetricsConfig struct {
	// StatsdAddress is a DogStatsD host:port. Empty disables statsd.
	StatsdAddress string `yaml:"statsd_address"`
}

// Duration wraps time.Duration for YAML unmarshalling.
//
// It accepts duration strings ("30s", "1m") and plain integers, which are
// read as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the host, MQTT and statsd settings.
// Missing keys take their defaults; an explicit port of 0 is rejected. The
// pod target is checked with [podbridge.ValidateTarget], so an invalid host
// or port surfaces as a [*podbridge.ConfigError].
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		Port:         podbridge.DefaultPort,
		PollInterval: Duration(podbridge.DefaultPollInterval),
		Timeout:      Duration(podbridge.DefaultTimeout),
		StatusPath:   "/api/deviceStatus",
		ListenPort:   podbridge.DefaultListenPort,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	expand := []struct {
		name string
		val  *string
	}{
		{"host", &c.Host},
		{"mqtt.broker", &c.MQTT.Broker},
		{"mqtt.username", &c.MQTT.Username},
		{"mqtt.password", &c.MQTT.Password},
		{"metrics.statsd_address", &c.Metrics.StatsdAddress},
	}
	for _, f := range expand {
		expanded, err := expandEnvVars(*f.val)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.val = strings.TrimSpace(expanded)
	}

	if err := podbridge.ValidateTarget(c.Host, c.Port); err != nil {
		return err
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.Timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %s", c.Timeout.Duration())
	}
	if !strings.HasPrefix(c.StatusPath, "/") {
		return fmt.Errorf("status_path must start with /, got %q", c.StatusPath)
	}
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be between 1 and 65535, got %d", c.ListenPort)
	}
	if c.MQTT.Broker == "" && (c.MQTT.Username != "" || c.MQTT.Password != "") {
		return fmt.Errorf("mqtt: credentials given without a broker")
	}

	return nil
}
