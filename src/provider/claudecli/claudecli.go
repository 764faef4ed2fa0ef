// Package claudecli adapts the claude CLI's stream-json output to the event
// model. Each Stream call launches one CLI process; multi-turn context lives
// inside the CLI and is continued with --resume using the session id captured
// from a previous invocation.
package claudecli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/burrowhq/burrow/src/events"
	"github.com/burrowhq/burrow/src/provider"
)

const (
	defaultBin = "claude"

	// Lines can carry whole tool results; give the scanner room.
	maxLineSize = 4 * 1024 * 1024
)

// Config holds the adapter settings.
type Config struct {
	// Bin is the CLI executable. Defaults to "claude".
	Bin string

	// Model passed through with --model when set.
	Model string

	Logger *slog.Logger
}

// Provider implements provider.Provider on top of the claude CLI.
type Provider struct {
	bin    string
	model  string
	logger *slog.Logger
}

var _ provider.Provider = (*Provider)(nil)

// New creates a CLI-backed provider.
func New(cfg Config) *Provider {
	bin := cfg.Bin
	if bin == "" {
		bin = defaultBin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{bin: bin, model: cfg.Model, logger: logger}
}

// Stream launches the CLI and translates its output. The returned channel is
// closed when the process output is exhausted or ctx is cancelled.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan events.Event, error) {
	args := []string{
		"-p", req.Message,
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
		"--dangerously-skip-permissions",
	}
	if p.model != "" {
		args = append(args, "--model", p.model)
	}
	if req.ResumeID != "" {
		args = append(args, "--resume", req.ResumeID)
	} else if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}

	cmd := exec.CommandContext(ctx, p.bin, args...)
	cmd.Env = scrubEnv(os.Environ())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("claudecli: stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("claudecli: start %s: %w", p.bin, err)
	}

	p.logger.Info("cli run started", "model", p.model, "resume", req.ResumeID != "")

	ch := make(chan events.Event, 64)
	go func() {
		defer close(ch)

		tr := newTranslator()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	scan:
		for scanner.Scan() {
			for _, ev := range tr.feed(scanner.Bytes()) {
				select {
				case ch <- ev:
				case <-ctx.Done():
					break scan
				}
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- events.Error{Message: fmt.Sprintf("reading cli output: %v", err)}:
			case <-ctx.Done():
			}
		}

		// A non-zero exit after the stream has reached a terminal state is
		// diagnostic, not a turn error.
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			p.logger.Error("cli exited with error",
				"err", err,
				"stderr", truncate(stderr.String(), 500))
		}
		p.logger.Info("cli run finished", "session_id", tr.sessionID)
	}()

	return ch, nil
}

// scrubEnv drops the variables a nested claude session would block on.
func scrubEnv(env []string) []string {
	out := env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDECODE=") || strings.HasPrefix(kv, "CLAUDE_CODE=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
