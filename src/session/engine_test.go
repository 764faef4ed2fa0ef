package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowhq/burrow/src/events"
	"github.com/burrowhq/burrow/src/interact"
	"github.com/burrowhq/burrow/src/provider"
	"github.com/burrowhq/burrow/src/session"
	"github.com/burrowhq/burrow/src/storage"
)

// scriptedProvider replays one event script per Stream call and records the
// requests it received.
type scriptedProvider struct {
	mu       sync.Mutex
	scripts  [][]events.Event
	requests []provider.Request
	startErr error
}

func (p *scriptedProvider) Stream(ctx context.Context, req provider.Request) (<-chan events.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return nil, p.startErr
	}
	p.requests = append(p.requests, req)

	var script []events.Event
	if len(p.scripts) > 0 {
		script = p.scripts[0]
		p.scripts = p.scripts[1:]
	}
	ch := make(chan events.Event, len(script)+1)
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type collector struct {
	mu  sync.Mutex
	evs []events.Event
}

func (c *collector) emit(ev events.Event) {
	c.mu.Lock()
	c.evs = append(c.evs, ev)
	c.mu.Unlock()
}

func (c *collector) all() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.evs...)
}

func newEngine(p provider.Provider, store session.Store) (*session.Engine, *interact.Registry) {
	reg := interact.NewRegistry()
	return &session.Engine{
		Provider:     p,
		Store:        store,
		Registry:     reg,
		SystemPrompt: "be helpful",
	}, reg
}

func TestSimpleTurn(t *testing.T) {
	p := &scriptedProvider{scripts: [][]events.Event{{
		events.SessionResumeID{ID: "sess-1"},
		events.TextChunk{Content: "hi "},
		events.TextChunk{Content: "there"},
		events.Done{},
	}}}
	store := storage.NewMemoryStore()
	eng, _ := newEngine(p, store)

	state := session.NewState("assistant", "sonnet")
	sink := &collector{}
	require.NoError(t, eng.RunTurn(context.Background(), state, "hello", sink.emit))

	// Resume id captured as a side effect, never emitted.
	assert.Equal(t, "sess-1", state.ResumeID)
	assert.Equal(t, []events.Event{
		events.TextChunk{Content: "hi "},
		events.TextChunk{Content: "there"},
		events.Done{},
	}, sink.all())

	saved, err := store.Load(context.Background(), state.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, session.RoleUser, saved.Messages[0].Role)
	assert.Equal(t, "hello", saved.Messages[0].Content)
	assert.Equal(t, session.RoleAssistant, saved.Messages[1].Role)
	assert.Equal(t, "hi there", saved.Messages[1].Content)
}

func TestAutoTitleFromFirstMessage(t *testing.T) {
	p := &scriptedProvider{scripts: [][]events.Event{{events.Done{}}}}
	eng, _ := newEngine(p, storage.NewMemoryStore())

	state := session.NewState("assistant", "sonnet")
	sink := &collector{}
	require.NoError(t, eng.RunTurn(context.Background(), state, "Plan my week\nwith details", sink.emit))
	assert.Equal(t, "Plan my week", state.Title)
}

func TestSystemPromptOnlyOnFirstInvocation(t *testing.T) {
	p := &scriptedProvider{scripts: [][]events.Event{
		{events.SessionResumeID{ID: "sess-1"}, events.Done{}},
		{events.Done{}},
	}}
	eng, _ := newEngine(p, storage.NewMemoryStore())
	state := session.NewState("assistant", "sonnet")
	sink := &collector{}

	require.NoError(t, eng.RunTurn(context.Background(), state, "first", sink.emit))
	require.NoError(t, eng.RunTurn(context.Background(), state, "second", sink.emit))

	require.Len(t, p.requests, 2)
	assert.Equal(t, "be helpful", p.requests[0].SystemPrompt)
	assert.Empty(t, p.requests[0].ResumeID)
	assert.Empty(t, p.requests[1].SystemPrompt)
	assert.Equal(t, "sess-1", p.requests[1].ResumeID)
}

func TestToolCallLinkage(t *testing.T) {
	p := &scriptedProvider{scripts: [][]events.Event{{
		events.ToolStart{CallID: "c1", Tool: "bash", Input: map[string]any{}},
		events.ToolDone{CallID: "c1", Tool: "bash", Output: "ok", Input: map[string]any{"command": "ls"}},
		events.Done{},
	}}}
	store := storage.NewMemoryStore()
	eng, _ := newEngine(p, store)
	state := session.NewState("assistant", "sonnet")
	sink := &collector{}

	require.NoError(t, eng.RunTurn(context.Background(), state, "run ls", sink.emit))

	saved, _ := store.Load(context.Background(), state.ID)
	require.Len(t, saved.Messages, 2)
	require.Len(t, saved.Messages[1].ToolCalls, 1)
	tc := saved.Messages[1].ToolCalls[0]
	assert.Equal(t, "ok", tc.Output)
	require.NotNil(t, tc.CompletedAt)
	// Late full input overwrites the empty start-time input.
	assert.Equal(t, map[string]any{"command": "ls"}, tc.Input)
}

func TestParagraphSeparatorAfterToolOutput(t *testing.T) {
	p := &scriptedProvider{scripts: [][]events.Event{{
		events.TextChunk{Content: "Checking."},
		events.ToolStart{CallID: "c1", Tool: "bash"},
		events.ToolDone{CallID: "c1", Tool: "bash", Output: "ok"},
		events.TextChunk{Content: "All good."},
		events.Done{},
	}}}
	store := storage.NewMemoryStore()
	eng, _ := newEngine(p, store)
	state := session.NewState("assistant", "sonnet")
	sink := &collector{}

	require.NoError(t, eng.RunTurn(context.Background(), state, "check", sink.emit))

	saved, _ := store.Load(context.Background(), state.ID)
	assert.Equal(t, "Checking.\n\nAll good.", saved.Messages[1].Content)
}

func TestInteractionPauseAndResume(t *testing.T) {
	p := &scriptedProvider{scripts: [][]events.Event{
		{
			events.TextChunk{Content: "Pick one: <ask>Which?</ask>"},
			events.Done{},
		},
		{
			events.TextChunk{Content: "You picked A."},
			events.Done{},
		},
	}}
	store := storage.NewMemoryStore()
	eng, reg := newEngine(p, store)
	state := session.NewState("assistant", "sonnet")
	sink := &collector{}

	done := make(chan error, 1)
	go func() { done <- eng.RunTurn(context.Background(), state, "go", sink.emit) }()

	// Wait for the interaction request to surface, then answer it.
	var reqID string
	require.Eventually(t, func() bool {
		for _, ev := range sink.all() {
			if r, ok := ev.(events.InteractionRequest); ok {
				reqID = r.RequestID
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	reg.Resolve(reqID, "A")
	require.NoError(t, <-done)

	// Both invocations belong to one logical turn: one assistant message.
	saved, _ := store.Load(context.Background(), state.ID)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, "Pick one: You picked A.", saved.Messages[1].Content)

	// The answer was issued as the next provider message.
	require.Len(t, p.requests, 2)
	assert.Equal(t, "A", p.requests[1].Message)

	// Exactly one terminal Done, as the final event.
	evs := sink.all()
	assert.Equal(t, events.Done{}, evs[len(evs)-1])
	countDone := 0
	for _, ev := range evs {
		if _, ok := ev.(events.Done); ok {
			countDone++
		}
	}
	assert.Equal(t, 1, countDone)
	assert.Equal(t, 0, reg.Len(), "pending entries removed after consumption")
}

func TestInteractionTimeoutSubstitutesPlaceholder(t *testing.T) {
	p := &scriptedProvider{scripts: [][]events.Event{
		{events.TextChunk{Content: "<ask>Still there?</ask>"}, events.Done{}},
		{events.TextChunk{Content: "Moving on."}, events.Done{}},
	}}
	eng, _ := newEngine(p, storage.NewMemoryStore())
	eng.AnswerTimeout = 20 * time.Millisecond
	state := session.NewState("assistant", "sonnet")
	sink := &collector{}

	require.NoError(t, eng.RunTurn(context.Background(), state, "go", sink.emit))

	require.Len(t, p.requests, 2)
	assert.Equal(t, "(no response)", p.requests[1].Message)
}

func TestProviderErrorPersistsPartialMessage(t *testing.T) {
	p := &scriptedProvider{scripts: [][]events.Event{{
		events.TextChunk{Content: "partial answer"},
		events.Error{Message: "backend exploded"},
	}}}
	store := storage.NewMemoryStore()
	eng, _ := newEngine(p, store)
	state := session.NewState("assistant", "sonnet")
	sink := &collector{}

	require.NoError(t, eng.RunTurn(context.Background(), state, "go", sink.emit))

	evs := sink.all()
	require.NotEmpty(t, evs)
	assert.Equal(t, events.Error{Message: "backend exploded"}, evs[len(evs)-1])
	for _, ev := range evs {
		_, isDone := ev.(events.Done)
		assert.False(t, isDone, "error turn must not also emit Done")
	}

	saved, _ := store.Load(context.Background(), state.ID)
	require.NotNil(t, saved)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, "partial answer", saved.Messages[1].Content)
}

func TestProviderStartFailure(t *testing.T) {
	p := &scriptedProvider{startErr: errors.New("no such binary")}
	eng, _ := newEngine(p, storage.NewMemoryStore())
	state := session.NewState("assistant", "sonnet")
	sink := &collector{}

	require.NoError(t, eng.RunTurn(context.Background(), state, "go", sink.emit))
	evs := sink.all()
	require.Len(t, evs, 1)
	assert.IsType(t, events.Error{}, evs[0])
}

func TestCancelledTurnEndsWithSingleDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedProvider{scripts: [][]events.Event{{
		events.TextChunk{Content: "never seen"},
		events.Done{},
	}}}
	eng, _ := newEngine(p, storage.NewMemoryStore())
	state := session.NewState("assistant", "sonnet")
	sink := &collector{}

	require.NoError(t, eng.RunTurn(ctx, state, "go", sink.emit))

	assert.Equal(t, []events.Event{events.Done{}}, sink.all(),
		"cancelled turn emits exactly its terminal Done and nothing after")
}

func TestGateRejectsConcurrentTurn(t *testing.T) {
	g := session.NewGate()
	require.True(t, g.Acquire("conv-1"))
	assert.False(t, g.Acquire("conv-1"))
	assert.True(t, g.Acquire("conv-2"))
	g.Release("conv-1")
	assert.True(t, g.Acquire("conv-1"))
}
