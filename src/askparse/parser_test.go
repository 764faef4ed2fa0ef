package askparse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowhq/burrow/src/events"
	"github.com/burrowhq/burrow/src/interact"
)

func newTestParser() *Parser {
	p := New(interact.NewRegistry())
	n := 0
	p.newID = func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	}
	return p
}

// run feeds the given text chunks followed by Done and returns all output
// events.
func run(p *Parser, chunks ...string) []events.Event {
	var out []events.Event
	for _, c := range chunks {
		out = append(out, p.Feed(events.TextChunk{Content: c})...)
	}
	return append(out, p.Feed(events.Done{})...)
}

// coalesce merges adjacent text chunks so sequences fed with different chunk
// boundaries can be compared.
func coalesce(evs []events.Event) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if tc, ok := ev.(events.TextChunk); ok {
			if len(out) > 0 {
				if prev, ok := out[len(out)-1].(events.TextChunk); ok {
					out[len(out)-1] = events.TextChunk{Content: prev.Content + tc.Content}
					continue
				}
			}
		}
		out = append(out, ev)
	}
	return out
}

func TestPlainTextPassesThrough(t *testing.T) {
	out := run(newTestParser(), "hello ", "world")
	assert.Equal(t, []events.Event{
		events.TextChunk{Content: "hello "},
		events.TextChunk{Content: "world"},
		events.Done{},
	}, out)
}

func TestSingleAskScenario(t *testing.T) {
	out := run(newTestParser(), `Pick one: <ask type="single_choice" options="A|B">Which?</ask>`)

	require.Len(t, out, 2)
	assert.Equal(t, events.TextChunk{Content: "Pick one: "}, out[0])
	assert.Equal(t, events.InteractionRequest{
		RequestID: "req-1",
		Question:  "Which?",
		InputType: events.InputSingleChoice,
		Options:   []string{"A", "B"},
	}, out[1])
	// Done suppressed while the interaction is pending.
	for _, ev := range out {
		_, isDone := ev.(events.Done)
		assert.False(t, isDone)
	}
}

func TestHeldBackSuffix(t *testing.T) {
	p := newTestParser()
	out := p.Feed(events.TextChunk{Content: "hello <ask-f"})
	assert.Equal(t, []events.Event{events.TextChunk{Content: "hello "}}, out)

	// On Done the suffix is known to be final and is flushed as text.
	out = p.Feed(events.Done{})
	assert.Equal(t, []events.Event{
		events.TextChunk{Content: "<ask-f"},
		events.Done{},
	}, out)
}

func TestChunkBoundaryInvariance(t *testing.T) {
	input := `before <ask type="confirmation">Proceed?</ask> after`

	whole := coalesce(run(newTestParser(), input))

	for i := 0; i <= len(input); i++ {
		split := coalesce(run(newTestParser(), input[:i], input[i:]))
		assert.Equal(t, whole, split, "split at offset %d", i)
	}
}

func TestMultipleTagsInOnePass(t *testing.T) {
	out := run(newTestParser(), "a<ask>one</ask>b<ask>two</ask>c")
	assert.Equal(t, []events.Event{
		events.TextChunk{Content: "a"},
		events.InteractionRequest{RequestID: "req-1", Question: "one", InputType: events.InputText},
		events.TextChunk{Content: "b"},
		events.InteractionRequest{RequestID: "req-2", Question: "two", InputType: events.InputText},
		events.TextChunk{Content: "c"},
	}, out)
}

func TestUnknownInputTypeCollapsesToText(t *testing.T) {
	out := run(newTestParser(), `<ask type="dropdown">Q</ask>`)
	require.Len(t, out, 1)
	req := out[0].(events.InteractionRequest)
	assert.Equal(t, events.InputText, req.InputType)
}

func TestOptionsTrimmedAndFiltered(t *testing.T) {
	out := run(newTestParser(), `<ask type="multi_choice" options=" X | |Y|">Q</ask>`)
	require.Len(t, out, 1)
	req := out[0].(events.InteractionRequest)
	assert.Equal(t, []string{"X", "Y"}, req.Options)
}

func TestFormParsing(t *testing.T) {
	input := `<ask-form paginated="true">
		<ask name="lang" type="single_choice" options="go|py">Language?</ask>
		<ask>Anything else?</ask>
	</ask-form>`
	out := run(newTestParser(), input)

	require.Len(t, out, 1)
	form := out[0].(events.InteractionForm)
	assert.True(t, form.Paginated)
	require.Len(t, form.Questions, 2)
	assert.Equal(t, events.FormQuestion{
		Name:      "lang",
		Question:  "Language?",
		InputType: events.InputSingleChoice,
		Options:   []string{"go", "py"},
	}, form.Questions[0])
	// Unnamed child gets a synthesized ordinal name.
	assert.Equal(t, "q2", form.Questions[1].Name)
}

func TestEmptyFormForwardedAsText(t *testing.T) {
	input := "<ask-form>\nnothing here\n</ask-form>"
	out := coalesce(run(newTestParser(), input))

	require.Len(t, out, 2)
	assert.Equal(t, events.TextChunk{Content: input}, out[0])
	assert.Equal(t, events.Done{}, out[1])
}

func TestFormSplitAcrossChunks(t *testing.T) {
	out := run(newTestParser(),
		"intro <ask-fo", `rm><ask name="a">A?`, "</ask></ask-form> tail")

	require.Len(t, out, 3)
	assert.Equal(t, events.TextChunk{Content: "intro "}, out[0])
	form := out[1].(events.InteractionForm)
	assert.Equal(t, "a", form.Questions[0].Name)
	assert.Equal(t, events.TextChunk{Content: " tail"}, out[2])
}

func TestNonTextEventForcesFlush(t *testing.T) {
	p := newTestParser()
	p.Feed(events.TextChunk{Content: "tool coming <as"})
	out := p.Feed(events.ToolStart{CallID: "c1", Tool: "bash"})

	assert.Equal(t, []events.Event{
		events.TextChunk{Content: "tool coming "},
		events.ToolStart{CallID: "c1", Tool: "bash"},
	}, out)
}

func TestDoneSuppressionLeavesPending(t *testing.T) {
	p := newTestParser()
	out := run2(p, "<ask>ready?</ask>")

	for _, ev := range out {
		_, isDone := ev.(events.Done)
		assert.False(t, isDone, "Done must be suppressed")
	}
	require.Len(t, p.Pending(), 1)
	assert.Equal(t, "req-1", p.Pending()[0].RequestID)
}

// run2 is run without a fresh parser per call, for tests that inspect parser
// state afterwards.
func run2(p *Parser, chunks ...string) []events.Event {
	var out []events.Event
	for _, c := range chunks {
		out = append(out, p.Feed(events.TextChunk{Content: c})...)
	}
	return append(out, p.Feed(events.Done{})...)
}

func TestPendingRegisteredBeforeEmission(t *testing.T) {
	reg := interact.NewRegistry()
	p := New(reg)

	out := p.Feed(events.TextChunk{Content: "<ask>Q</ask>"})
	require.Len(t, out, 1)
	req := out[0].(events.InteractionRequest)

	// The registry already knows the id: an early answer is not lost.
	reg.Resolve(req.RequestID, "early")
	assert.Equal(t, "early", <-p.Pending()[0].Answer)
}

func TestRequestIDUniqueness(t *testing.T) {
	reg := interact.NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		p := New(reg)
		out := p.Feed(events.TextChunk{Content: "<ask>Q</ask>"})
		require.Len(t, out, 1)
		id := out[0].(events.InteractionRequest).RequestID
		assert.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}

func TestAskFormTieBreakPrefersBareAsk(t *testing.T) {
	// A bare ask immediately followed by a form: both extracted, in order.
	out := run(newTestParser(), `<ask>first</ask><ask-form><ask name="x">X?</ask></ask-form>`)
	require.Len(t, out, 2)
	assert.IsType(t, events.InteractionRequest{}, out[0])
	assert.IsType(t, events.InteractionForm{}, out[1])
}
