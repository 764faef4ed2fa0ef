package session

import "sync"

// Gate enforces the single-writer-per-conversation rule: a second turn start
// against a conversation id already running is rejected instead of racing
// writes.
type Gate struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{active: make(map[string]struct{})}
}

// Acquire reserves the conversation for one turn. It returns false when a
// turn is already running.
func (g *Gate) Acquire(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[conversationID]; busy {
		return false
	}
	g.active[conversationID] = struct{}{}
	return true
}

// Release frees the conversation after its turn ends.
func (g *Gate) Release(conversationID string) {
	g.mu.Lock()
	delete(g.active, conversationID)
	g.mu.Unlock()
}
