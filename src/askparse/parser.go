// Package askparse extracts inline interaction markup from a streaming text
// sequence. The model may embed questions in its output:
//
//	Single question:
//	  <ask>question</ask>
//	  <ask type="confirmation">Proceed?</ask>
//	  <ask type="single_choice" options="A|B|C">Which?</ask>
//
//	Multi-question form (submitted together):
//	  <ask-form>
//	    <ask name="field1">First question</ask>
//	    <ask name="field2" type="single_choice" options="A|B">Second</ask>
//	  </ask-form>
//
// The parser buffers incoming text so tags split across arbitrary chunk
// boundaries are still recognized, and suppresses the terminal Done event
// while interactions are pending so the turn engine can resume the turn after
// the client answers.
package askparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/burrowhq/burrow/src/events"
	"github.com/burrowhq/burrow/src/interact"
)

const (
	askClose  = "</ask>"
	formClose = "</ask-form>"
)

var (
	// Locate the start of either tag kind. The bare form requires a space or
	// '>' after "<ask" so "<ask-form" never matches it.
	bareStartRE = regexp.MustCompile(`<ask[\s>]`)
	formStartRE = regexp.MustCompile(`<ask-form[\s>/]`)

	// Full bare tag, anchored. Group 1 is the attribute text, group 2 the
	// question body.
	askTagRE = regexp.MustCompile(`(?s)^<ask(\s[^>]*)?>(.*)</ask>$`)

	// Child <ask> entries inside a form body. "<ask-form" cannot match: the
	// character after "<ask" must be whitespace or '>'.
	formChildRE = regexp.MustCompile(`(?s)<ask(\s[^>]*)?>(.*?)</ask>`)

	attrRE      = regexp.MustCompile(`([a-zA-Z_-]+)="([^"]*)"`)
	paginatedRE = regexp.MustCompile(`(?i)paginated="true"`)
)

// Tails of both tag openers that could be split across chunk boundaries,
// longest first.
var partialPrefixes = []string{
	"<ask-form", "<ask-for", "<ask-fo", "<ask-f", "<ask-",
	"<ask", "<as", "<a", "<",
}

// Pending identifies one interaction emitted during a drain, paired with the
// channel its answer will arrive on.
type Pending struct {
	RequestID string
	Answer    <-chan string
}

// Parser incrementally splits interaction markup out of a text stream. One
// Parser serves one drain of a provider stream; create a fresh one per drain.
type Parser struct {
	registry *interact.Registry
	buf      string
	pending  []Pending

	// newID is overridable in tests.
	newID func() string
}

// New creates a parser that pre-registers every extracted interaction with
// registry before emitting its event.
func New(registry *interact.Registry) *Parser {
	return &Parser{
		registry: registry,
		newID:    func() string { return uuid.New().String() },
	}
}

// Pending returns the interactions extracted so far, in emission order. A
// non-empty result after the stream ends means Done was suppressed and the
// caller must await an answer and resume the turn.
func (p *Parser) Pending() []Pending {
	return p.pending
}

// Feed consumes one upstream event and returns the events to forward
// downstream, in order.
func (p *Parser) Feed(ev events.Event) []events.Event {
	switch e := ev.(type) {
	case events.TextChunk:
		p.buf += e.Content
		return p.drainBuffer()

	case events.Done:
		out := p.flushBeforeEvent()
		out = append(out, p.drainBuffer()...)
		// Final: whatever is left (held-back suffix, unterminated tag head) is
		// known to be literal text now.
		if p.buf != "" {
			out = append(out, events.TextChunk{Content: p.buf})
			p.buf = ""
		}
		if len(p.pending) > 0 {
			return out // Done suppressed; caller resumes the turn
		}
		return append(out, ev)

	default:
		out := p.flushBeforeEvent()
		return append(out, ev)
	}
}

// drainBuffer greedily extracts every complete tag from the front of the
// buffer, flushing intervening text.
func (p *Parser) drainBuffer() []events.Event {
	var out []events.Event
	for {
		pos, isForm, found := p.firstTagStart()
		if !found {
			// No tag start: everything but a possible partial opener is safe.
			keep := partialSuffixLen(p.buf)
			if safe := p.buf[:len(p.buf)-keep]; safe != "" {
				out = append(out, events.TextChunk{Content: safe})
			}
			p.buf = p.buf[len(p.buf)-keep:]
			return out
		}

		var ev events.Event
		var rest string
		var ok bool
		if isForm {
			ev, rest, ok = p.extractForm()
		} else {
			ev, rest, ok = p.extractBareAsk()
		}
		if !ok {
			// Tag head seen but its close has not arrived: flush the text
			// before it and wait for more input.
			if pos > 0 {
				out = append(out, events.TextChunk{Content: p.buf[:pos]})
				p.buf = p.buf[pos:]
			}
			return out
		}

		if before := p.buf[:pos]; before != "" {
			out = append(out, events.TextChunk{Content: before})
		}
		out = append(out, ev)
		p.buf = rest
	}
}

// flushBeforeEvent emits the safely-flushable portion of the buffer ahead of a
// non-text event, keeping any partial opener or unterminated tag buffered.
func (p *Parser) flushBeforeEvent() []events.Event {
	pos, _, found := p.firstTagStart()
	if !found {
		keep := partialSuffixLen(p.buf)
		safe := p.buf[:len(p.buf)-keep]
		p.buf = p.buf[len(p.buf)-keep:]
		if safe != "" {
			return []events.Event{events.TextChunk{Content: safe}}
		}
		return nil
	}
	if pos > 0 {
		before := p.buf[:pos]
		p.buf = p.buf[pos:]
		return []events.Event{events.TextChunk{Content: before}}
	}
	return nil
}

// firstTagStart locates the earliest opener of either kind. On an exact
// position tie the bare form wins.
func (p *Parser) firstTagStart() (pos int, isForm bool, found bool) {
	bare := bareStartRE.FindStringIndex(p.buf)
	form := formStartRE.FindStringIndex(p.buf)
	switch {
	case bare == nil && form == nil:
		return 0, false, false
	case bare != nil && (form == nil || bare[0] <= form[0]):
		return bare[0], false, true
	default:
		return form[0], true, true
	}
}

// extractBareAsk parses the first complete <ask>...</ask>. ok is false while
// the tag is still incomplete.
func (p *Parser) extractBareAsk() (events.Event, string, bool) {
	loc := bareStartRE.FindStringIndex(p.buf)
	if loc == nil {
		return nil, "", false
	}
	pos := loc[0]
	closeEnd := strings.Index(p.buf[pos:], askClose)
	if closeEnd == -1 {
		return nil, "", false
	}
	end := pos + closeEnd + len(askClose)
	m := askTagRE.FindStringSubmatch(p.buf[pos:end])
	if m == nil {
		return nil, "", false
	}

	attrs := parseAttrs(m[1])
	ev := events.InteractionRequest{
		RequestID: p.register(),
		Question:  strings.TrimSpace(m[2]),
		InputType: events.NormalizeInputType(attrs["type"]),
		Options:   splitOptions(attrs["options"]),
	}
	return ev, p.buf[end:], true
}

// extractForm parses the first complete <ask-form>...</ask-form>. A form with
// no valid children is not an interaction; it is left in the buffer and
// surfaces as literal text on the final flush.
func (p *Parser) extractForm() (events.Event, string, bool) {
	loc := formStartRE.FindStringIndex(p.buf)
	if loc == nil {
		return nil, "", false
	}
	pos := loc[0]
	closeEnd := strings.Index(p.buf[pos:], formClose)
	if closeEnd == -1 {
		return nil, "", false
	}
	end := pos + closeEnd + len(formClose)

	openClose := strings.Index(p.buf[pos:], ">")
	if openClose == -1 || openClose >= closeEnd {
		return nil, "", false
	}
	inner := p.buf[pos+openClose+1 : pos+closeEnd]

	var questions []events.FormQuestion
	for i, m := range formChildRE.FindAllStringSubmatch(inner, -1) {
		attrs := parseAttrs(m[1])
		name := strings.TrimSpace(attrs["name"])
		if name == "" {
			name = "q" + strconv.Itoa(i+1)
		}
		questions = append(questions, events.FormQuestion{
			Name:      name,
			Question:  strings.TrimSpace(m[2]),
			InputType: events.NormalizeInputType(attrs["type"]),
			Options:   splitOptions(attrs["options"]),
		})
	}
	if len(questions) == 0 {
		return nil, "", false
	}

	openingTag := p.buf[pos : pos+openClose+1]
	ev := events.InteractionForm{
		RequestID: p.register(),
		Questions: questions,
		Paginated: paginatedRE.MatchString(openingTag),
	}
	return ev, p.buf[end:], true
}

// register synthesizes a request id and pre-registers it so an answer that
// arrives before the engine starts awaiting is not lost.
func (p *Parser) register() string {
	id := p.newID()
	ch := p.registry.Register(id)
	p.pending = append(p.pending, Pending{RequestID: id, Answer: ch})
	return id
}

// partialSuffixLen returns how many trailing bytes of buf could still grow
// into a tag opener.
func partialSuffixLen(buf string) int {
	for _, prefix := range partialPrefixes {
		if strings.HasSuffix(buf, prefix) {
			return len(prefix)
		}
	}
	return 0
}

func parseAttrs(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRE.FindAllStringSubmatch(raw, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

// splitOptions splits a pipe-delimited list, trimming and dropping empties.
func splitOptions(raw string) []string {
	if raw == "" {
		return nil
	}
	var opts []string
	for _, o := range strings.Split(raw, "|") {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	return opts
}
