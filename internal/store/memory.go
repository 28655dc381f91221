package store

import (
	"sort"
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. States are keyed by entity unique id, with new
// states replacing previous values.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber.
type MemoryStore struct {
	mu          sync.RWMutex
	states      map[string]EntityState
	subscribers map[chan EntityState]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:      make(map[string]EntityState),
		subscribers: make(map[chan EntityState]struct{}),
	}
}

// Update stores an [EntityState] and notifies all subscribers.
func (m *MemoryStore) Update(state EntityState) {
	m.mu.Lock()
	m.states[state.UniqueID] = state
	m.mu.Unlock()

	m.notifySubscribers(state)
}

// Get returns the stored state for uniqueID.
func (m *MemoryStore) Get(uniqueID string) (EntityState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[uniqueID]
	return state, ok
}

// GetAll returns a snapshot of all stored states, ordered by UniqueID.
func (m *MemoryStore) GetAll() []EntityState {
	m.mu.RLock()
	states := make([]EntityState, 0, len(m.states))
	for _, state := range m.states {
		states = append(states, state)
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].UniqueID < states[j].UniqueID
	})
	return states
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan EntityState {
	ch := make(chan EntityState, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan EntityState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// the map is keyed by the bidirectional channel
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the state to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(state EntityState) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- state:
		default:
			// subscriber is slow, drop the message
		}
	}
}
