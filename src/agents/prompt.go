package agents

import (
	"strings"
	"time"
)

var sectionBar = strings.Repeat("=", 40)

func section(title string) string {
	return sectionBar + " " + title + " " + sectionBar
}

const interactionInstructions = `When you need input from the user before continuing, embed an interaction block
in your response and stop generating after the closing tag.
The user's answer(s) will arrive as your next message.

--- Single question ---

  <ask>Your question here</ask>
  <ask type="confirmation">Proceed?</ask>
  <ask type="single_choice" options="Option A|Option B|Option C">Which do you prefer?</ask>
  <ask type="multi_choice" options="Tag1|Tag2|Tag3">Select all that apply</ask>

Rules: put on its own line, stop after </ask>, one question per turn.

--- Multiple questions (shown as a form, submitted together) ---

  All questions on one page (default):
  <ask-form>
    <ask name="project_name">What should the project be called?</ask>
    <ask name="language" type="single_choice" options="Python|TypeScript|Rust">Which language?</ask>
    <ask name="tests" type="confirmation">Include tests?</ask>
  </ask-form>

  One question at a time, auto-advance on selection (good for longer questionnaires):
  <ask-form paginated="true">
    <ask name="mood" type="single_choice" options="Happy|Neutral|Stressed">How are you feeling?</ask>
    <ask name="goal">What's your main goal today?</ask>
  </ask-form>

The name attribute becomes the key in the JSON answer you receive, e.g.:
  {"project_name": "myapp", "language": "TypeScript", "tests": "Yes"}

Rules: stop after </ask-form>, use <ask-form> only when multiple related
inputs are genuinely needed at once.`

// BuildSystemPrompt assembles the full instructions sent on a conversation's
// first provider invocation: the agent's own instructions plus the inline
// interaction protocol.
func (a *Agent) BuildSystemPrompt() string {
	parts := []string{
		section("AGENT") + "\n\n" + strings.TrimSpace(a.SystemPrompt),
		section("INTERACTION") + "\n\n" + interactionInstructions,
	}
	prompt := strings.Join(parts, "\n\n---\n\n")
	return "Today: " + time.Now().Format("2006-01-02") + "\n\n" + prompt
}
