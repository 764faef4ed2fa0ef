// Package interact bridges the two halves of the inline-question protocol: the
// parser registers a pending question the moment it is extracted from the
// model's text, and the websocket loop resolves it whenever the client's
// answer arrives. Registration happens before the question event is emitted
// downstream, so an answer can never race ahead of its waiter.
package interact

import "sync"

// Registry maps request ids to single-slot answer channels. A Registry is
// owned by the composition root and shared by reference; there is no package
// singleton.
type Registry struct {
	mu      sync.Mutex
	pending map[string]chan string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]chan string)}
}

// Register creates the answer channel for requestID and returns it. The
// channel holds one value; a second Resolve for the same id is dropped.
func (r *Registry) Register(requestID string) <-chan string {
	ch := make(chan string, 1)
	r.mu.Lock()
	r.pending[requestID] = ch
	r.mu.Unlock()
	return ch
}

// Resolve deposits an answer without blocking. Unknown ids (already consumed,
// expired, or never registered) are ignored: at-most-once delivery, no error
// surfaced to the caller.
func (r *Registry) Resolve(requestID, value string) {
	r.mu.Lock()
	ch, ok := r.pending[requestID]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- value:
	default:
	}
}

// Remove forgets requestID. Called after the answer is consumed or the owning
// wait times out, so abandoned questions do not accumulate.
func (r *Registry) Remove(requestID string) {
	r.mu.Lock()
	delete(r.pending, requestID)
	r.mu.Unlock()
}

// Len reports the number of pending entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
