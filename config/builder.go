package config

import (
	"time"

	"github.com/jpalmerr/podbridge"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger, status callbacks and interval saver are left to the caller.
func BuildOptions(cfg *Config) []podbridge.Option {
	opts := []podbridge.Option{
		podbridge.WithHost(cfg.Host),
		podbridge.WithPort(cfg.Port),
		podbridge.WithPollInterval(cfg.PollInterval.Duration()),
		podbridge.WithTimeout(cfg.Timeout.Duration()),
		podbridge.WithStatusPath(cfg.StatusPath),
		podbridge.WithListenPort(cfg.ListenPort),
	}

	if cfg.Title != "" {
		opts = append(opts, podbridge.WithTitle(cfg.Title))
	}

	if cfg.MQTT.Broker != "" {
		opts = append(opts, podbridge.WithMQTT(podbridge.MQTTConfig{
			Broker:          cfg.MQTT.Broker,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
			ClientID:        cfg.MQTT.ClientID,
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			TopicPrefix:     cfg.MQTT.TopicPrefix,
		}))
	}

	if cfg.Metrics.StatsdAddress != "" {
		opts = append(opts, podbridge.WithStatsd(cfg.Metrics.StatsdAddress))
	}

	return opts
}

// Saver returns an interval saver that persists to the file at path.
func Saver(path string) podbridge.IntervalSaver {
	return func(d time.Duration) error {
		return SaveInterval(path, d)
	}
}
