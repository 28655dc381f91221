package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/podbridge"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
host: 192.168.1.50
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval.Duration())
	}
	if cfg.Timeout.Duration() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout.Duration())
	}
	if cfg.StatusPath != "/api/deviceStatus" {
		t.Errorf("StatusPath = %q, want /api/deviceStatus", cfg.StatusPath)
	}
	if cfg.ListenPort != 8090 {
		t.Errorf("ListenPort = %d, want 8090", cfg.ListenPort)
	}
	if cfg.MQTT.Broker != "" || cfg.Metrics.StatsdAddress != "" {
		t.Errorf("optional sinks should be disabled: %+v %+v", cfg.MQTT, cfg.Metrics)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
host: pod.local
port: 9000
poll_interval: 45s
timeout: 5s
status_path: /status
listen_port: 9090

mqtt:
  broker: tcp://broker:1883
  username: bridge
  password: hunter2
  client_id: bedroom
  discovery_prefix: ha
  topic_prefix: bed

metrics:
  statsd_address: 127.0.0.1:8125
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Host != "pod.local" || cfg.Port != 9000 {
		t.Errorf("target = %s:%d, want pod.local:9000", cfg.Host, cfg.Port)
	}
	if cfg.PollInterval.Duration() != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", cfg.PollInterval.Duration())
	}
	if cfg.Timeout.Duration() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout.Duration())
	}
	if cfg.StatusPath != "/status" || cfg.ListenPort != 9090 {
		t.Errorf("StatusPath = %q, ListenPort = %d", cfg.StatusPath, cfg.ListenPort)
	}
	want := MQTTConfig{
		Broker:          "tcp://broker:1883",
		Username:        "bridge",
		Password:        "hunter2",
		ClientID:        "bedroom",
		DiscoveryPrefix: "ha",
		TopicPrefix:     "bed",
	}
	if cfg.MQTT != want {
		t.Errorf("MQTT = %+v, want %+v", cfg.MQTT, want)
	}
	if cfg.Metrics.StatsdAddress != "127.0.0.1:8125" {
		t.Errorf("StatsdAddress = %q", cfg.Metrics.StatsdAddress)
	}
}

func TestParse_TargetValidation(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantCode string
	}{
		{"missing host", "port: 8080", podbridge.CodeHostRequired},
		{"empty host", `host: ""`, podbridge.CodeHostRequired},
		{"empty env host", "host: ${UNSET_POD_HOST:-}", podbridge.CodeHostRequired},
		{"port zero", "host: pod\nport: 0", podbridge.CodeInvalidPort},
		{"port too large", "host: pod\nport: 65536", podbridge.CodeInvalidPort},
		{"port negative", "host: pod\nport: -5", podbridge.CodeInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var cfgErr *podbridge.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Parse() error = %v, want *ConfigError", err)
			}
			if cfgErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", cfgErr.Code, tt.wantCode)
			}
		})
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"poll interval too small", "host: pod\npoll_interval: 500ms", "poll_interval must be at least 1s"},
		{"poll interval zero", "host: pod\npoll_interval: 0", "poll_interval must be at least 1s"},
		{"timeout too small", "host: pod\ntimeout: 100ms", "timeout must be at least 1s"},
		{"relative status path", "host: pod\nstatus_path: api/deviceStatus", "status_path must start with /"},
		{"listen port", "host: pod\nlisten_port: 70000", "listen_port must be between 1 and 65535"},
		{"credentials without broker", "host: pod\nmqtt:\n  username: bridge", "credentials given without a broker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	// t.Setenv auto-restores after test (Go 1.17+)
	t.Setenv("TEST_POD_HOST", "10.0.0.7")
	t.Setenv("TEST_MQTT_PASSWORD", "secret123")

	yaml := `
host: ${TEST_POD_HOST}
mqtt:
  broker: tcp://broker:1883
  password: "${TEST_MQTT_PASSWORD}"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Host != "10.0.0.7" {
		t.Errorf("Host = %q, want 10.0.0.7", cfg.Host)
	}
	if cfg.MQTT.Password != "secret123" {
		t.Errorf("MQTT.Password = %q, want secret123", cfg.MQTT.Password)
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
host: ${UNSET_POD_HOST:-pod.local}
metrics:
  statsd_address: ${UNSET_STATSD:-}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Host != "pod.local" {
		t.Errorf("Host = %q, want pod.local", cfg.Host)
	}
	if cfg.Metrics.StatsdAddress != "" {
		t.Errorf("StatsdAddress = %q, want empty", cfg.Metrics.StatsdAddress)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	// MISSING_POD_HOST is expected to not exist in the environment
	_, err := Parse([]byte("host: ${MISSING_POD_HOST}"))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "MISSING_POD_HOST") {
		t.Errorf("error should mention MISSING_POD_HOST: %v", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("host: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %v", err)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "10s", 10 * time.Second, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"combined", "1m30s", 90 * time.Second, false},
		{"integer seconds", "30", 30 * time.Second, false},
		{"quoted integer", `"45"`, 45 * time.Second, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte("host: pod\npoll_interval: " + tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.PollInterval.Duration() != tt.want {
				t.Errorf("PollInterval = %v, want %v", cfg.PollInterval.Duration(), tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// UNSET and MISSING are expected to not exist in environment
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}
