// Package session owns one conversation's state and the turn engine that
// mutates it. A conversation is single-writer: exactly one turn may run
// against a given state at a time (see Gate), and the engine owning it is the
// only mutator for the duration of that turn.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Roles for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCall is one tool invocation recorded on an assistant message. It stays
// open (nil CompletedAt) until the matching tool completion arrives.
type ToolCall struct {
	ID          string         `json:"id"`
	Tool        string         `json:"tool"`
	Input       map[string]any `json:"input"`
	Output      string         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Message is one turn of the conversation transcript.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// State is the persisted conversation aggregate.
type State struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	AgentID  string    `json:"agent_id"`
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	// ResumeID is the provider's resumable session identifier. Opaque to
	// everything except the provider adapter that issued it.
	ResumeID string `json:"resume_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultTitle is the placeholder replaced by the first user message.
const DefaultTitle = "New conversation"

// NewState creates a fresh conversation for the given agent.
func NewState(agentID, model string) *State {
	now := time.Now().UTC()
	return &State{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		AgentID:   agentID,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Store persists conversation state. Load returns (nil, nil) when the id is
// unknown so callers branch on absence without error plumbing.
type Store interface {
	Save(ctx context.Context, state *State) error
	Load(ctx context.Context, id string) (*State, error)
}

// Bridge mirrors turns to an external chat channel. Implementations are best
// effort; the engine logs and continues on failure.
type Bridge interface {
	Forward(ctx context.Context, state *State, text, role string) error
}

const titleMaxLen = 60

// autoTitle derives a conversation title from the first user message.
func autoTitle(text string) string {
	title, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if r := []rune(title); len(r) > titleMaxLen {
		title = string(r[:titleMaxLen-1]) + "…"
	}
	if title == "" {
		return DefaultTitle
	}
	return title
}
