// Package provider defines the boundary between the conversation turn engine
// and an external model backend. Adapters own their backend's process or
// connection lifecycle and translate its native protocol into the normalized
// event model.
package provider

import (
	"context"

	"github.com/burrowhq/burrow/src/events"
)

// Request carries everything an adapter needs for one model invocation.
type Request struct {
	// SystemPrompt is sent on the first invocation of a conversation only.
	SystemPrompt string

	// Message is the user (or interaction-answer) text for this invocation.
	Message string

	// ResumeID, when set, continues the backend's internal context instead of
	// resending history. Opaque to everything but the adapter that issued it.
	ResumeID string
}

// Provider streams one model invocation as events. The returned channel is
// closed when the invocation reaches a terminal state; cancellation of ctx
// must tear down the backend and close the channel.
type Provider interface {
	Stream(ctx context.Context, req Request) (<-chan events.Event, error)
}
