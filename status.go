package podbridge

import (
	"time"

	"github.com/jpalmerr/podbridge/internal/coordinator"
	"github.com/jpalmerr/podbridge/internal/poller"
)

// Availability is the health of one device side as the bridge sees it.
type Availability string

const (
	// AvailabilityUnknown is reported before the first poll completes.
	AvailabilityUnknown Availability = "unknown"

	// AvailabilityAvailable indicates the side's values come from the latest poll.
	AvailabilityAvailable Availability = "available"

	// AvailabilityUnavailable indicates the latest poll failed or did not
	// include the side. Values are the last known ones.
	AvailabilityUnavailable Availability = "unavailable"
)

// String returns the string representation of the availability.
func (a Availability) String() string {
	return string(a)
}

// EntityValue is the state of a single sensor after a poll cycle.
type EntityValue struct {
	// UniqueID is stable across restarts, e.g. "eight_sleep_left_is_on".
	UniqueID string

	// Name is the display name, e.g. "Eight Sleep Left Device On".
	Name string

	// Side is "left", "right" or "hub".
	Side string

	// Value is a float64, int64, bool or string, or nil when the field has
	// never been reported.
	Value any

	// State is Value formatted for display ("ON"/"OFF" for binary sensors).
	State string

	// Available is false when Value is stale or missing.
	Available bool
}

// StatusResult holds the outcome of one poll cycle.
//
// StatusResult is a copy; it does not change after the callback returns.
type StatusResult struct {
	// Cycle counts poll cycles from 1.
	Cycle uint64

	// URL is the status endpoint that was polled.
	URL string

	// Latency is the time taken by the HTTP request.
	Latency time.Duration

	// CheckedAt is the timestamp when the poll was performed.
	CheckedAt time.Time

	// Error is nil when the fetch succeeded. Individual fields may still be
	// missing; see [EntityValue.Available].
	Error error

	// FailureKind is "unreachable", "timeout" or "bad_response" when Error is
	// set, empty otherwise.
	FailureKind string

	// Sides maps "left", "right" and "hub" to their availability.
	Sides map[string]Availability

	// Entities lists every sensor in device order.
	Entities []EntityValue
}

func toAvailability(a coordinator.Availability) Availability {
	switch a {
	case coordinator.Available:
		return AvailabilityAvailable
	case coordinator.Unavailable:
		return AvailabilityUnavailable
	default:
		return AvailabilityUnknown
	}
}

// newStatusResult snapshots the coordinator after r was applied.
func newStatusResult(r poller.Result, coord *coordinator.Coordinator) StatusResult {
	res := StatusResult{
		Cycle:     r.Cycle,
		URL:       r.URL,
		Latency:   r.Latency,
		CheckedAt: r.CheckedAt,
		Error:     r.Err,
		Sides:     make(map[string]Availability),
	}
	if r.Err != nil {
		res.FailureKind = poller.Kind(r.Err).String()
	}

	for _, dev := range coord.Devices() {
		res.Sides[dev.Side.String()] = toAvailability(coord.State(dev.Side).Availability)
		for _, e := range dev.Entities {
			v := e.Value()
			res.Entities = append(res.Entities, EntityValue{
				UniqueID:  e.UniqueID,
				Name:      e.Name,
				Side:      dev.Side.String(),
				Value:     v.Raw,
				State:     v.State(e.Binary),
				Available: v.Available,
			})
		}
	}
	return res
}
