package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/burrowhq/burrow/src/askparse"
	"github.com/burrowhq/burrow/src/events"
	"github.com/burrowhq/burrow/src/interact"
	"github.com/burrowhq/burrow/src/provider"
)

// DefaultAnswerTimeout bounds the wait for an interaction answer. On expiry a
// placeholder answer is substituted and the turn continues.
const DefaultAnswerTimeout = 300 * time.Second

// timeoutAnswer is sent to the model when the client never answered.
const timeoutAnswer = "(no response)"

// Engine drives one conversation's turns. It is the single writer of the
// State passed to RunTurn for the duration of that call.
type Engine struct {
	Provider provider.Provider
	Store    Store
	Registry *interact.Registry

	// SystemPrompt is the assembled agent instructions, sent to the provider
	// on the conversation's first invocation only.
	SystemPrompt string

	// Bridge, when set, mirrors the turn to an external chat. Best effort.
	Bridge Bridge

	// AnswerTimeout overrides DefaultAnswerTimeout when positive.
	AnswerTimeout time.Duration

	Logger *slog.Logger
}

// RunTurn executes one logical turn: it appends the user message, streams the
// provider's response through the interaction parser, loops across interaction
// pauses, and persists exactly one assistant message. It emits exactly one
// terminal event per turn: Done on completion or cancellation, Error on
// provider failure.
func (e *Engine) RunTurn(ctx context.Context, state *State, content string, emit func(events.Event)) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if len(state.Messages) == 0 && state.Title == DefaultTitle {
		state.Title = autoTitle(content)
	}
	state.Messages = append(state.Messages, Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})

	e.forward(ctx, state, content, RoleUser, logger)

	// Accumulator for the single assistant message this turn produces, even
	// when it spans several provider invocations.
	var (
		assistantContent string
		toolCalls        []*ToolCall
		inFlight         = make(map[string]*ToolCall)
		hadToolSinceText bool
	)

	finalize := func() {
		msg := Message{
			Role:      RoleAssistant,
			Content:   assistantContent,
			Timestamp: time.Now().UTC(),
		}
		for _, tc := range toolCalls {
			msg.ToolCalls = append(msg.ToolCalls, *tc)
		}
		state.Messages = append(state.Messages, msg)
		state.UpdatedAt = time.Now().UTC()
		if err := e.Store.Save(ctx, state); err != nil {
			logger.Error("saving conversation failed", "id", state.ID, "err", err)
		}
	}

	message := content
	for {
		req := provider.Request{Message: message, ResumeID: state.ResumeID}
		if state.ResumeID == "" {
			req.SystemPrompt = e.SystemPrompt
		}

		stream, err := e.Provider.Stream(ctx, req)
		if err != nil {
			logger.Error("provider start failed", "id", state.ID, "err", err)
			if assistantContent != "" || len(toolCalls) > 0 {
				finalize()
			}
			emit(events.Error{Message: err.Error()})
			return nil
		}

		parser := askparse.New(e.Registry)
		finished, failed := false, false

	drain:
		for ev := range stream {
			if ctx.Err() != nil {
				break drain
			}
			for _, out := range parser.Feed(ev) {
				switch o := out.(type) {
				case events.SessionResumeID:
					// Side effect only; never forwarded past the engine.
					state.ResumeID = o.ID

				case events.TextChunk:
					if hadToolSinceText && assistantContent != "" {
						// Narrative resumed after tool output; keep the
						// transcript visually separated.
						assistantContent += "\n\n"
					}
					assistantContent += o.Content
					hadToolSinceText = false
					emit(o)

				case events.ToolStart:
					tc := &ToolCall{
						ID:        o.CallID,
						Tool:      o.Tool,
						Input:     o.Input,
						StartedAt: time.Now().UTC(),
					}
					inFlight[o.CallID] = tc
					toolCalls = append(toolCalls, tc)
					emit(o)

				case events.ToolDone:
					if tc, ok := inFlight[o.CallID]; ok {
						delete(inFlight, o.CallID)
						tc.Output = o.Output
						tc.Error = o.Error
						now := time.Now().UTC()
						tc.CompletedAt = &now
						if len(o.Input) > 0 {
							// The adapter learned the full input late.
							tc.Input = o.Input
						}
					}
					hadToolSinceText = true
					emit(o)

				case events.Done:
					finished = true

				case events.Error:
					failed = true
					emit(o)

				default:
					emit(out)
				}
			}
		}

		if ctx.Err() != nil {
			// Cancellation is not an error: terminate with a deterministic
			// Done and stop emitting for this turn.
			logger.Info("turn cancelled", "id", state.ID)
			emit(events.Done{})
			return nil
		}

		if failed {
			// Best effort: never silently discard what the model produced.
			if assistantContent != "" || len(toolCalls) > 0 {
				finalize()
			}
			return nil
		}

		pending := parser.Pending()
		if finished || len(pending) == 0 {
			finalize()
			e.forward(ctx, state, assistantContent, RoleAssistant, logger)
			emit(events.Done{})
			return nil
		}

		// Done was suppressed: an inline question is pending. Await the first
		// answer and resume the same logical turn with it.
		first := pending[0]
		logger.Info("awaiting interaction answer", "id", state.ID, "request_id", first.RequestID)

		answer, ok := e.awaitAnswer(ctx, first.Answer)
		for _, p := range pending {
			e.Registry.Remove(p.RequestID)
		}
		if ctx.Err() != nil {
			emit(events.Done{})
			return nil
		}
		if !ok {
			answer = timeoutAnswer
		}
		message = answer
	}
}

// awaitAnswer blocks until an answer arrives, the timeout expires, or ctx is
// cancelled. ok is false on timeout.
func (e *Engine) awaitAnswer(ctx context.Context, ch <-chan string) (string, bool) {
	timeout := e.AnswerTimeout
	if timeout <= 0 {
		timeout = DefaultAnswerTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func (e *Engine) forward(ctx context.Context, state *State, text, role string, logger *slog.Logger) {
	if e.Bridge == nil || text == "" {
		return
	}
	if err := e.Bridge.Forward(ctx, state, text, role); err != nil {
		logger.Warn("bridge forward failed", "id", state.ID, "role", role, "err", err)
	}
}
