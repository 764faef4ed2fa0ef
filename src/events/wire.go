package events

import (
	"encoding/json"
	"fmt"
)

// Wire envelope shapes. Field sets match the frontend contract; absent fields
// are omitted rather than sent as null where the client treats them as
// optional.
type wireTextChunk struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type wireToolStart struct {
	Type   string         `json:"type"`
	CallID string         `json:"call_id"`
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input"`
}

type wireToolDone struct {
	Type   string         `json:"type"`
	CallID string         `json:"call_id"`
	Tool   string         `json:"tool"`
	Output string         `json:"output"`
	Error  string         `json:"error,omitempty"`
	Input  map[string]any `json:"input"`
}

type wireTerminal struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type wireInteractionRequest struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id"`
	Question  string    `json:"question"`
	InputType InputType `json:"input_type"`
	Options   []string  `json:"options"`
}

type wireInteractionForm struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Questions []FormQuestion `json:"questions"`
	Paginated bool           `json:"paginated"`
}

// MarshalWire encodes an event for the client. SessionResumeID is internal and
// returns an error so a misrouted event fails loudly instead of leaking.
func MarshalWire(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case TextChunk:
		return json.Marshal(wireTextChunk{Type: "text_chunk", Content: e.Content})
	case ToolStart:
		input := e.Input
		if input == nil {
			input = map[string]any{}
		}
		return json.Marshal(wireToolStart{Type: "tool_start", CallID: e.CallID, Tool: e.Tool, Input: input})
	case ToolDone:
		input := e.Input
		if input == nil {
			input = map[string]any{}
		}
		return json.Marshal(wireToolDone{Type: "tool_done", CallID: e.CallID, Tool: e.Tool, Output: e.Output, Error: e.Error, Input: input})
	case Done:
		return json.Marshal(wireTerminal{Type: "done"})
	case Error:
		return json.Marshal(wireTerminal{Type: "error", Message: e.Message})
	case InteractionRequest:
		opts := e.Options
		if opts == nil {
			opts = []string{}
		}
		return json.Marshal(wireInteractionRequest{Type: "interaction_request", RequestID: e.RequestID, Question: e.Question, InputType: e.InputType, Options: opts})
	case InteractionForm:
		return json.Marshal(wireInteractionForm{Type: "interaction_form", RequestID: e.RequestID, Questions: e.Questions, Paginated: e.Paginated})
	case SessionResumeID:
		return nil, fmt.Errorf("events: session resume id must not cross the transport boundary")
	default:
		return nil, fmt.Errorf("events: unknown event type %T", ev)
	}
}
