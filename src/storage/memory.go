package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/burrowhq/burrow/src/session"
)

// MemoryStore keeps conversation state in memory. No disk I/O; use in tests.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string][]byte
}

var _ session.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

// Save stores a snapshot of the state.
func (m *MemoryStore) Save(ctx context.Context, state *session.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.states[state.ID] = data
	m.mu.Unlock()
	return nil
}

// Load returns a copy of the stored state, or (nil, nil) when absent.
func (m *MemoryStore) Load(ctx context.Context, id string) (*session.State, error) {
	m.mu.Lock()
	data, ok := m.states[id]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var state session.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
