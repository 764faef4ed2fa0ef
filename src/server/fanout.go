package server

import (
	"log/slog"
	"sync"

	"github.com/burrowhq/burrow/src/events"
)

// Sink is one attached client channel. A Send error means the client is gone.
type Sink interface {
	Send(data []byte) error
}

// Fanout tracks attached sinks per conversation and delivers events to all of
// them. A sink that fails a write is dropped silently; a conversation with no
// sinks left is removed from the map.
type Fanout struct {
	mu     sync.Mutex
	sinks  map[string][]Sink
	logger *slog.Logger
}

func NewFanout(logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{sinks: make(map[string][]Sink), logger: logger}
}

// Attach registers a sink for a conversation.
func (f *Fanout) Attach(conversationID string, s Sink) {
	f.mu.Lock()
	f.sinks[conversationID] = append(f.sinks[conversationID], s)
	total := len(f.sinks[conversationID])
	f.mu.Unlock()
	f.logger.Debug("sink attached", "conversation", conversationID, "total", total)
}

// Detach removes a sink. Removing the last sink forgets the conversation.
func (f *Fanout) Detach(conversationID string, s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remove(conversationID, s)
}

func (f *Fanout) remove(conversationID string, s Sink) {
	kept := f.sinks[conversationID][:0]
	for _, existing := range f.sinks[conversationID] {
		if existing != s {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		delete(f.sinks, conversationID)
		return
	}
	f.sinks[conversationID] = kept
}

// Send marshals the event and delivers it to every sink attached to the
// conversation. Failed sinks are treated as disconnected and dropped.
func (f *Fanout) Send(conversationID string, ev events.Event) {
	data, err := events.MarshalWire(ev)
	if err != nil {
		f.logger.Error("dropping unmarshalable event", "conversation", conversationID, "err", err)
		return
	}

	f.mu.Lock()
	targets := append([]Sink(nil), f.sinks[conversationID]...)
	f.mu.Unlock()

	for _, s := range targets {
		if err := s.Send(data); err != nil {
			f.mu.Lock()
			f.remove(conversationID, s)
			f.mu.Unlock()
		}
	}
}

// Len reports the number of sinks attached to a conversation.
func (f *Fanout) Len(conversationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks[conversationID])
}
