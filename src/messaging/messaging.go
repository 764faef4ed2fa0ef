// Package messaging mirrors conversation turns to external chat channels.
package messaging

import (
	"context"
	"log/slog"

	"github.com/burrowhq/burrow/src/session"
)

// LogBridge records forwarded turns to the logger and nothing else. It stands
// in for a real chat integration while keeping the engine's mirroring path
// live.
type LogBridge struct {
	Logger *slog.Logger
}

var _ session.Bridge = (*LogBridge)(nil)

func (b *LogBridge) Forward(ctx context.Context, state *session.State, text, role string) error {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("bridge forward",
		"conversation", state.ID,
		"role", role,
		"chars", len(text),
	)
	return nil
}

// Fanout forwards each turn to every bridge. All bridges run even when one
// fails; the first error is returned.
type Fanout struct {
	Bridges []session.Bridge
}

var _ session.Bridge = (*Fanout)(nil)

func (f *Fanout) Forward(ctx context.Context, state *session.State, text, role string) error {
	var first error
	for _, b := range f.Bridges {
		if err := b.Forward(ctx, state, text, role); err != nil && first == nil {
			first = err
		}
	}
	return first
}
