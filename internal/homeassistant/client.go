package homeassistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jpalmerr/podbridge/internal/coordinator"
)

const (
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultTopicPrefix     = "podbridge"

	payloadOnline  = "online"
	payloadOffline = "offline"

	defaultTimeout = 5 * time.Second
)

// Client is the part of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Config configures the MQTT connection and topic layout.
type Config struct {
	// Broker is a paho broker URL, e.g. tcp://192.168.1.10:1883.
	Broker   string
	Username string
	Password string

	// ClientID defaults to podbridge-<random>.
	ClientID string

	DiscoveryPrefix string
	TopicPrefix     string

	// Timeout bounds connect and each publish.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DiscoveryPrefix == "" {
		c.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	if c.ClientID == "" {
		c.ClientID = "podbridge-" + uuid.NewString()[:8]
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

type lastState struct {
	state        string
	availability string
}

// Publisher announces devices through Home Assistant MQTT discovery and
// mirrors entity values onto retained state and availability topics.
//
// It implements [coordinator.Publisher]. On every (re)connect it publishes
// the bridge status, the discovery configs and the last known states again.
type Publisher struct {
	client Client
	cfg    Config
	logger *slog.Logger

	// disconnect is set when the publisher owns the connection
	disconnect func()

	mu      sync.Mutex
	devices []*coordinator.Device
	last    map[string]lastState
}

// New wraps an existing client. The caller keeps ownership of the connection.
func New(client Client, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger,
		last:   make(map[string]lastState),
	}
}

// Connect dials the broker and returns a publisher that owns the connection.
//
// The bridge status topic carries a retained "offline" last will.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}

	p := New(nil, cfg, logger)

	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(p.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(p.cfg.Timeout).
		SetWill(p.statusTopic(), payloadOffline, 1, true).
		SetOnConnectHandler(func(mqtt.Client) {
			p.onConnect()
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			p.logger.Warn("mqtt connection lost", "error", err)
		}).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			p.logger.Info("mqtt reconnecting", "broker", p.cfg.Broker)
		})
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	p.client = client
	p.disconnect = func() { client.Disconnect(250) }

	t := client.Connect()
	if !t.WaitTimeout(p.cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %v", p.cfg.Broker, p.cfg.Timeout)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", p.cfg.Broker, err)
	}
	p.logger.Info("mqtt connected", "broker", p.cfg.Broker, "client_id", p.cfg.ClientID)
	return p, nil
}

func (p *Publisher) statusTopic() string {
	return p.cfg.TopicPrefix + "/status"
}

// StateTopic returns the state topic of an entity.
func (p *Publisher) StateTopic(e *coordinator.Entity) string {
	return fmt.Sprintf("%s/%s/state", p.cfg.TopicPrefix, e.UniqueID)
}

// AvailabilityTopic returns the availability topic of an entity.
func (p *Publisher) AvailabilityTopic(e *coordinator.Entity) string {
	return fmt.Sprintf("%s/%s/availability", p.cfg.TopicPrefix, e.UniqueID)
}

// ConfigTopic returns the discovery topic of an entity.
func (p *Publisher) ConfigTopic(e *coordinator.Entity) string {
	return fmt.Sprintf("%s/%s/%s/config", p.cfg.DiscoveryPrefix, component(e), e.UniqueID)
}

func component(e *coordinator.Entity) string {
	if e.Binary {
		return "binary_sensor"
	}
	return "sensor"
}

// Register publishes the retained discovery config of every entity of dev.
func (p *Publisher) Register(dev *coordinator.Device) error {
	p.mu.Lock()
	p.devices = append(p.devices, dev)
	p.mu.Unlock()

	return p.publishDiscovery(dev)
}

func (p *Publisher) publishDiscovery(dev *coordinator.Device) error {
	for _, e := range dev.Entities {
		payload, err := json.Marshal(p.discovery(dev, e))
		if err != nil {
			return fmt.Errorf("marshal discovery for %s: %w", e.UniqueID, err)
		}
		if err := p.publish(p.ConfigTopic(e), true, payload); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) discovery(dev *coordinator.Device, e *coordinator.Entity) discoveryConfig {
	cfg := discoveryConfig{
		UniqueID:   e.UniqueID,
		ObjectID:   e.UniqueID,
		Name:       e.Name,
		StateTopic: p.StateTopic(e),
		Availability: []availabilityEntry{
			{Topic: p.statusTopic()},
			{Topic: p.AvailabilityTopic(e)},
		},
		AvailabilityMode:  "all",
		DeviceClass:       e.DeviceClass,
		UnitOfMeasurement: e.Unit,
		Device: deviceBlock{
			Identifiers:  []string{dev.ID},
			Name:         dev.Name,
			Manufacturer: dev.Manufacturer,
			Model:        dev.Model,
		},
	}
	if e.Binary {
		cfg.PayloadOn = "ON"
		cfg.PayloadOff = "OFF"
	} else if e.Unit != "" {
		cfg.StateClass = "measurement"
	}
	return cfg
}

// Update publishes the entity's state and availability. Failures are logged;
// the next cycle publishes again.
func (p *Publisher) Update(e *coordinator.Entity, v coordinator.Value) {
	ls := lastState{state: v.State(e.Binary), availability: payloadOffline}
	if v.Available {
		ls.availability = payloadOnline
	}

	p.mu.Lock()
	p.last[e.UniqueID] = ls
	p.mu.Unlock()

	p.publishState(e, ls)
}

func (p *Publisher) publishState(e *coordinator.Entity, ls lastState) {
	if ls.state != "" {
		if err := p.publish(p.StateTopic(e), true, ls.state); err != nil {
			p.logger.Warn("mqtt state publish failed", "entity", e.UniqueID, "error", err)
		}
	}
	if err := p.publish(p.AvailabilityTopic(e), true, ls.availability); err != nil {
		p.logger.Warn("mqtt availability publish failed", "entity", e.UniqueID, "error", err)
	}
}

// onConnect restores everything a broker restart may have lost.
func (p *Publisher) onConnect() {
	if err := p.publish(p.statusTopic(), true, payloadOnline); err != nil {
		p.logger.Warn("mqtt status publish failed", "error", err)
	}

	p.mu.Lock()
	devices := append([]*coordinator.Device(nil), p.devices...)
	last := make(map[string]lastState, len(p.last))
	for k, v := range p.last {
		last[k] = v
	}
	p.mu.Unlock()

	for _, dev := range devices {
		if err := p.publishDiscovery(dev); err != nil {
			p.logger.Warn("mqtt discovery re-publish failed", "device", dev.ID, "error", err)
			continue
		}
		for _, e := range dev.Entities {
			if ls, ok := last[e.UniqueID]; ok {
				p.publishState(e, ls)
			}
		}
	}
}

// Close marks every entity and the bridge offline, then disconnects if the
// publisher owns the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	devices := append([]*coordinator.Device(nil), p.devices...)
	p.mu.Unlock()

	var errs []error
	for _, dev := range devices {
		for _, e := range dev.Entities {
			if err := p.publish(p.AvailabilityTopic(e), true, payloadOffline); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := p.publish(p.statusTopic(), true, payloadOffline); err != nil {
		errs = append(errs, err)
	}

	if p.disconnect != nil {
		p.disconnect()
	}
	return errors.Join(errs...)
}

func (p *Publisher) publish(topic string, retained bool, payload interface{}) error {
	t := p.client.Publish(topic, 1, retained, payload)
	if !t.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("publish %s: timed out after %v", topic, p.cfg.Timeout)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
