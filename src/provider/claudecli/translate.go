package claudecli

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/burrowhq/burrow/src/events"
)

// cliLine is one line of the CLI's stream-json output. Only the fields this
// adapter consumes are declared.
type cliLine struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype"`
	SessionID string          `json:"session_id"`
	Event     *cliStreamEvent `json:"event"`
	Message   *cliMessage     `json:"message"`
}

type cliStreamEvent struct {
	Type         string           `json:"type"`
	ContentBlock *cliContentBlock `json:"content_block"`
	Delta        *cliDelta        `json:"delta"`
}

type cliDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cliMessage struct {
	Content []cliContentBlock `json:"content"`
}

// cliContentBlock is the union of the block shapes we care about: tool_use
// (in content_block_start and assistant messages) and tool_result (in user
// messages).
type cliContentBlock struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     map[string]any  `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	IsError   bool            `json:"is_error"`
	Content   json.RawMessage `json:"content"`
}

// pendingTool tracks a tool invocation between its start block and its result.
type pendingTool struct {
	renderID string
	name     string
	input    map[string]any
}

// translator converts stream-json lines into events. It is fed one line at a
// time and carries the per-invocation state: the captured session id, whether
// a text run is open, and the in-flight tool table.
type translator struct {
	sessionID      string
	sessionEmitted bool
	textOpen       bool
	pending        map[string]*pendingTool

	// newID is overridable in tests.
	newID func() string
}

func newTranslator() *translator {
	return &translator{
		pending: make(map[string]*pendingTool),
		newID:   func() string { return uuid.New().String() },
	}
}

// feed translates one raw output line. Malformed JSON is skipped without
// failing the invocation.
func (t *translator) feed(raw []byte) []events.Event {
	line := strings.TrimSpace(string(raw))
	if line == "" {
		return nil
	}

	var msg cliLine
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return nil
	}

	switch msg.Type {
	case "system":
		if msg.Subtype == "init" && msg.SessionID != "" && t.sessionID == "" {
			t.sessionID = msg.SessionID
			t.sessionEmitted = true
			return []events.Event{events.SessionResumeID{ID: msg.SessionID}}
		}

	case "stream_event":
		if msg.Event == nil {
			return nil
		}
		return t.feedStreamEvent(msg.Event)

	case "assistant":
		// The complete assistant message carries fully-resolved tool inputs;
		// record them for the eventual ToolDone, emit nothing.
		if msg.Message == nil {
			return nil
		}
		for _, block := range msg.Message.Content {
			if block.Type != "tool_use" {
				continue
			}
			if entry, ok := t.pending[block.ID]; ok {
				entry.input = block.Input
			}
		}

	case "user":
		if msg.Message == nil {
			return nil
		}
		var out []events.Event
		for _, block := range msg.Message.Content {
			if block.Type != "tool_result" {
				continue
			}
			entry, ok := t.pending[block.ToolUseID]
			if !ok {
				continue
			}
			delete(t.pending, block.ToolUseID)

			result := flattenContent(block.Content)
			done := events.ToolDone{
				CallID: entry.renderID,
				Tool:   entry.name,
				Output: result,
				Input:  entry.input,
			}
			if block.IsError {
				done.Error = result
			}
			out = append(out, done)
		}
		return out

	case "result":
		t.textOpen = false
		if msg.SessionID != "" {
			t.sessionID = msg.SessionID
			if !t.sessionEmitted {
				// Fallback source when system/init never supplied one.
				t.sessionEmitted = true
				return []events.Event{
					events.SessionResumeID{ID: msg.SessionID},
					events.Done{},
				}
			}
		}
		return []events.Event{events.Done{}}
	}

	return nil
}

func (t *translator) feedStreamEvent(ev *cliStreamEvent) []events.Event {
	switch ev.Type {
	case "content_block_start":
		if ev.ContentBlock == nil {
			return nil
		}
		switch ev.ContentBlock.Type {
		case "text":
			t.textOpen = true
		case "tool_use":
			t.textOpen = false
			name := ev.ContentBlock.Name
			if name == "" {
				name = "unknown"
			}
			renderID := t.newID()
			t.pending[ev.ContentBlock.ID] = &pendingTool{renderID: renderID, name: name}
			// Input is empty here: arguments stream in later and are attached
			// to the eventual ToolDone.
			return []events.Event{events.ToolStart{CallID: renderID, Tool: name, Input: map[string]any{}}}
		}

	case "content_block_delta":
		if ev.Delta != nil && ev.Delta.Type == "text_delta" && t.textOpen {
			return []events.Event{events.TextChunk{Content: ev.Delta.Text}}
		}

	case "message_stop":
		t.textOpen = false
	}
	return nil
}

// flattenContent renders a tool_result content value, which the CLI emits
// either as a plain string or as a list of text blocks.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var b strings.Builder
		for _, blk := range blocks {
			b.WriteString(blk.Text)
		}
		return b.String()
	}

	return string(raw)
}
