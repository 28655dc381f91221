package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/jpalmerr/podbridge/internal/pod"
)

const (
	// Manufacturer is reported in every device block.
	Manufacturer = "Eight Sleep (Local)"

	// Model is reported in every device block.
	Model = "Pod vLocal"
)

// Availability is the externally observed state of a side.
//
// A side starts Unknown and moves to Available on its first successful poll.
// From then on it alternates between Available and Unavailable.
type Availability int

const (
	Unknown Availability = iota
	Available
	Unavailable
)

// String returns the string representation of the availability.
func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Availability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Device is one registered device. Its fields and entity list are fixed at
// construction.
type Device struct {
	// ID is stable across restarts: eight_sleep_{side}_device_{host}_{port}.
	ID           string
	Side         pod.Side
	Name         string
	Manufacturer string
	Model        string
	Entities     []*Entity
}

// Entity is a single sensor. It holds no state of its own; [Entity.Value]
// reads through the coordinator.
type Entity struct {
	Definition

	// UniqueID is eight_sleep_{side}_{key}.
	UniqueID string

	// Name includes the device prefix, e.g. "Eight Sleep Left Device On".
	Name string

	Device *Device

	coord *Coordinator
}

// Value is an entity's value as seen by publishers.
type Value struct {
	// Raw is float64, int64, bool or string. It keeps the last known value
	// while the entity is unavailable and is nil before the first poll.
	Raw any

	Available bool

	// UpdatedAt is the time of the cycle that last produced Raw.
	UpdatedAt time.Time
}

// Value returns the current value of the entity.
func (e *Entity) Value() Value {
	return e.coord.value(e)
}

// State formats the value the way MQTT state topics and the API expose it:
// "ON"/"OFF" for binary sensors, the plain value otherwise. Empty when no
// value has been seen.
func (v Value) State(binary bool) string {
	switch raw := v.Raw.(type) {
	case nil:
		return ""
	case bool:
		if binary {
			if raw {
				return "ON"
			}
			return "OFF"
		}
		return fmt.Sprintf("%t", raw)
	default:
		return fmt.Sprintf("%v", raw)
	}
}

// DeviceID builds the stable id of the device for side.
func DeviceID(side pod.Side, host string, port int) string {
	return fmt.Sprintf("eight_sleep_%s_device_%s_%d", side, host, port)
}

func titleSide(side pod.Side) string {
	s := side.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func newDevice(c *Coordinator, side pod.Side, defs []Definition) *Device {
	dev := &Device{
		ID:           DeviceID(side, c.target.Host, c.target.Port),
		Side:         side,
		Name:         "Eight Sleep " + titleSide(side),
		Manufacturer: Manufacturer,
		Model:        Model,
	}
	for _, def := range defs {
		dev.Entities = append(dev.Entities, &Entity{
			Definition: def,
			UniqueID:   fmt.Sprintf("eight_sleep_%s_%s", side, def.Key),
			Name:       fmt.Sprintf("Eight Sleep %s %s", titleSide(side), def.Name),
			Device:     dev,
			coord:      c,
		})
	}
	return dev
}
