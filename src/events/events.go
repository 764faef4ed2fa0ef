// Package events defines the closed set of streaming events exchanged between
// the provider adapters, the interaction parser, the turn engine, and the
// websocket transport. The same values flow through every layer; only the wire
// marshaler decides what crosses the transport boundary.
package events

// Event is the sealed union of all streaming event kinds. Every variant lives
// in this package; consumers switch exhaustively over the concrete types.
type Event interface {
	isEvent()
}

// TextChunk carries a fragment of assistant narrative text.
type TextChunk struct {
	Content string
}

// ToolStart announces that the model began invoking a tool. Input may be empty
// at this point: the external CLI streams the block header before the full
// arguments are known.
type ToolStart struct {
	CallID string
	Tool   string
	Input  map[string]any
}

// ToolDone closes a tool invocation previously announced by ToolStart with the
// same CallID. Input carries the fully-resolved arguments when the adapter
// learned them after the start event.
type ToolDone struct {
	CallID string
	Tool   string
	Output string
	Error  string
	Input  map[string]any
}

// Done terminates a turn's event stream.
type Done struct{}

// Error terminates a turn's event stream with a failure. The conversation
// itself stays usable.
type Error struct {
	Message string
}

// SessionResumeID carries the external CLI's resumable session identifier.
// Internal only: the turn engine consumes it and it is never forwarded to a
// client.
type SessionResumeID struct {
	ID string
}

// InteractionRequest is a single inline question extracted from the model's
// text. The turn pauses until the client answers or the wait times out.
type InteractionRequest struct {
	RequestID string
	Question  string
	InputType InputType
	Options   []string
}

// FormQuestion is one entry of an InteractionForm.
type FormQuestion struct {
	Name      string    `json:"name"`
	Question  string    `json:"question"`
	InputType InputType `json:"input_type"`
	Options   []string  `json:"options"`
}

// InteractionForm is a batch of questions answered together (or one at a time
// when Paginated is set; the flag is opaque to everything but the client).
type InteractionForm struct {
	RequestID string
	Questions []FormQuestion
	Paginated bool
}

func (TextChunk) isEvent()          {}
func (ToolStart) isEvent()          {}
func (ToolDone) isEvent()           {}
func (Done) isEvent()               {}
func (Error) isEvent()              {}
func (SessionResumeID) isEvent()    {}
func (InteractionRequest) isEvent() {}
func (InteractionForm) isEvent()    {}

// InputType classifies how the client should render an interaction question.
type InputType string

const (
	InputText         InputType = "text"
	InputConfirmation InputType = "confirmation"
	InputSingleChoice InputType = "single_choice"
	InputMultiChoice  InputType = "multi_choice"
)

// NormalizeInputType collapses unknown values to InputText.
func NormalizeInputType(raw string) InputType {
	switch InputType(raw) {
	case InputText, InputConfirmation, InputSingleChoice, InputMultiChoice:
		return InputType(raw)
	default:
		return InputText
	}
}
