package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/podbridge/internal/pod"
	"github.com/jpalmerr/podbridge/internal/poller"
)

// Publisher receives device registrations and entity values.
//
// Register is called once per device during setup. Update is called for every
// entity after each poll cycle, on the scheduler goroutine; implementations
// must not block for long.
type Publisher interface {
	Register(dev *Device) error
	Update(e *Entity, v Value)
}

// CycleObserver is implemented by publishers that also want the outcome of
// each poll cycle, e.g. to count failures.
type CycleObserver interface {
	ObserveCycle(r poller.Result)
}

// SideState is a point-in-time view of one side.
type SideState struct {
	Side         pod.Side     `json:"side"`
	Availability Availability `json:"availability"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Coordinator owns the latest status of both sides and the hub.
//
// The scheduler is the only writer, through [Coordinator.Apply]. Entities,
// publishers and the HTTP API read concurrently.
type Coordinator struct {
	target     poller.Target
	publishers []Publisher
	logger     *slog.Logger

	devices  []*Device
	entities map[string]*Entity

	mu           sync.RWMutex
	sides        map[pod.Side]*pod.SideStatus
	hub          *pod.HubStatus
	availability map[pod.Side]Availability
	updatedAt    map[pod.Side]time.Time
	lastErr      error
	registered   bool
}

// New builds the left, right and hub devices for target.
//
// Devices and entities are created here and never change afterwards. Nothing
// is published until [Coordinator.Register] is called.
func New(target poller.Target, publishers []Publisher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		target:       target,
		publishers:   publishers,
		logger:       logger,
		entities:     make(map[string]*Entity),
		sides:        make(map[pod.Side]*pod.SideStatus),
		availability: make(map[pod.Side]Availability),
		updatedAt:    make(map[pod.Side]time.Time),
	}

	for _, side := range pod.Sides {
		c.devices = append(c.devices, newDevice(c, side, SideDefinitions))
	}
	c.devices = append(c.devices, newDevice(c, pod.SideHub, HubDefinitions))

	for _, dev := range c.devices {
		for _, e := range dev.Entities {
			c.entities[e.UniqueID] = e
		}
	}
	return c
}

// Devices returns the registered devices: left, right, then hub.
func (c *Coordinator) Devices() []*Device {
	return c.devices
}

// Entities returns every entity in device order.
func (c *Coordinator) Entities() []*Entity {
	var out []*Entity
	for _, dev := range c.devices {
		out = append(out, dev.Entities...)
	}
	return out
}

// Entity looks up an entity by unique id.
func (c *Coordinator) Entity(uniqueID string) (*Entity, bool) {
	e, ok := c.entities[uniqueID]
	return e, ok
}

// Register announces every device to every publisher. It runs once; later
// calls are no-ops. The first failure aborts setup and is returned.
func (c *Coordinator) Register() error {
	c.mu.Lock()
	if c.registered {
		c.mu.Unlock()
		return nil
	}
	c.registered = true
	c.mu.Unlock()

	for _, p := range c.publishers {
		for _, dev := range c.devices {
			if err := p.Register(dev); err != nil {
				return fmt.Errorf("register device %s: %w", dev.ID, err)
			}
		}
	}
	return nil
}

// Apply folds one poll result into the coordinator state and pushes every
// entity's value to the publishers.
//
// A failed fetch marks all sides unavailable and keeps their last known
// values. A successful fetch replaces each present side as a whole; a side
// absent from the payload becomes unavailable on its own.
func (c *Coordinator) Apply(ctx context.Context, r poller.Result) {
	if ctx.Err() != nil {
		return
	}

	if r.Err != nil {
		c.applyFailure(r)
	} else {
		c.applySuccess(r)
	}
	c.publish(r)
}

func (c *Coordinator) applyFailure(r poller.Result) {
	c.logger.Warn("status poll failed",
		"url", r.URL,
		"kind", poller.Kind(r.Err).String(),
		"error", r.Err.Error(),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = r.Err
	for _, dev := range c.devices {
		c.setAvailability(dev.Side, Unavailable)
	}
}

func (c *Coordinator) applySuccess(r poller.Result) {
	snap := pod.Split(r.Payload)
	for _, m := range snap.Missing {
		c.logger.Debug("status field missing",
			"side", m.Side.String(),
			"field", string(m.Field),
			"reason", m.Error(),
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = nil
	for _, side := range pod.Sides {
		st := snap.Side(side)
		if st == nil {
			c.setAvailability(side, Unavailable)
			continue
		}
		c.sides[side] = st
		c.updatedAt[side] = r.CheckedAt
		c.setAvailability(side, Available)
	}

	hub := snap.Hub
	c.hub = &hub
	c.updatedAt[pod.SideHub] = r.CheckedAt
	c.setAvailability(pod.SideHub, Available)

	c.logger.Debug("status poll succeeded",
		"url", r.URL,
		"cycle", r.Cycle,
		"latency_ms", r.Latency.Milliseconds(),
	)
}

// setAvailability must be called with mu held.
func (c *Coordinator) setAvailability(side pod.Side, next Availability) {
	prev := c.availability[side]
	if prev == next {
		return
	}
	c.availability[side] = next
	c.logger.Info("side availability changed",
		"side", side.String(),
		"from", prev.String(),
		"to", next.String(),
	)
}

func (c *Coordinator) publish(r poller.Result) {
	entities := c.Entities()
	values := make([]Value, len(entities))
	for i, e := range entities {
		values[i] = e.Value()
	}

	for _, p := range c.publishers {
		if obs, ok := p.(CycleObserver); ok {
			obs.ObserveCycle(r)
		}
		for i, e := range entities {
			p.Update(e, values[i])
		}
	}
}

func (c *Coordinator) value(e *Entity) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()

	side := e.Device.Side
	var (
		raw   any
		valid bool
	)
	if side == pod.SideHub {
		if c.hub != nil {
			raw, valid = c.hub.Value(e.Field)
		}
	} else if st := c.sides[side]; st != nil {
		raw, valid = st.Value(e.Field)
	}
	if !valid {
		raw = nil
	}

	return Value{
		Raw:       raw,
		Available: valid && c.availability[side] == Available,
		UpdatedAt: c.updatedAt[side],
	}
}

// State returns the current view of side.
func (c *Coordinator) State(side pod.Side) SideState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return SideState{
		Side:         side,
		Availability: c.availability[side],
		UpdatedAt:    c.updatedAt[side],
	}
}

// LastError returns the error of the latest cycle, nil after a success.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Close closes every publisher that implements io.Closer-style Close.
func (c *Coordinator) Close() error {
	var errs []error
	for _, p := range c.publishers {
		if cl, ok := p.(interface{ Close() error }); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
