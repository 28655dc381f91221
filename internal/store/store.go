package store

import "time"

// EntityState is the latest published value of one sensor.
//
// EntityState is the storage representation used by the REST API and SSE.
// It is decoupled from the coordinator's types so the wire format can evolve
// independently.
type EntityState struct {
	// UniqueID is the entity's stable id, e.g. eight_sleep_left_is_on.
	UniqueID string `json:"unique_id"`

	// Name is the entity's display name.
	Name string `json:"name"`

	// DeviceID is the id of the owning device.
	DeviceID string `json:"device_id"`

	// Side is left, right or hub.
	Side string `json:"side"`

	// Field is the upstream JSON key.
	Field string `json:"field"`

	Unit        string `json:"unit,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`
	Binary      bool   `json:"binary"`

	// Value is the typed value, nil before the first successful poll.
	Value any `json:"value"`

	// State is the formatted value ("ON"/"OFF" for binary sensors).
	State string `json:"state"`

	Available bool `json:"available"`

	// UpdatedAt is the time of the cycle that produced Value.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for storing and subscribing to entity updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a new entity state and notifies all subscribers.
	// States are keyed by UniqueID, so subsequent updates replace previous values.
	Update(state EntityState)

	// Get returns the state of one entity.
	Get(uniqueID string) (EntityState, bool)

	// GetAll returns all currently stored states ordered by UniqueID.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []EntityState

	// Subscribe returns a channel that receives entity updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan EntityState

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan EntityState)
}
