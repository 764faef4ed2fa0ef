// Package agents loads agent definitions: .md files whose YAML front matter
// carries identity and model, and whose body is the agent's base instructions.
// User files override builtins with the same id.
package agents

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Agent is one loaded definition. ID is the file stem.
type Agent struct {
	ID           string
	Name         string
	Model        string
	Color        string
	SystemPrompt string
	Builtin      bool
}

type frontMatter struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`
	Color string `yaml:"color"`
}

const (
	defaultModel = "sonnet"
	defaultColor = "#6366f1"
)

// Loader resolves agents from a user directory and a builtin directory.
type Loader struct {
	fs         afero.Fs
	userDir    string
	builtinDir string
	logger     *slog.Logger
}

func NewLoader(fs afero.Fs, userDir, builtinDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fs: fs, userDir: userDir, builtinDir: builtinDir, logger: logger}
}

// Load resolves one agent by id, user dir first. Returns (nil, nil) when no
// file with that id exists in either directory.
func (l *Loader) Load(id string) (*Agent, error) {
	name := id + ".md"

	if agent, err := l.parseFile(filepath.Join(l.userDir, name), false); err != nil {
		return nil, err
	} else if agent != nil {
		return agent, nil
	}

	if agent, err := l.parseFile(filepath.Join(l.builtinDir, name), true); err != nil {
		return nil, err
	} else if agent != nil {
		return agent, nil
	}

	return nil, nil
}

// List returns all discoverable agents sorted by id. A file that fails to
// parse is logged and skipped rather than failing the listing.
func (l *Loader) List() ([]*Agent, error) {
	seen := make(map[string]*Agent)

	for _, dir := range []struct {
		path    string
		builtin bool
	}{{l.builtinDir, true}, {l.userDir, false}} {
		entries, err := afero.ReadDir(l.fs, dir.path)
		if err != nil {
			continue // Missing directory is not an error
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			agent, err := l.parseFile(filepath.Join(dir.path, entry.Name()), dir.builtin)
			if err != nil {
				l.logger.Warn("skipping unreadable agent file", "file", entry.Name(), "err", err)
				continue
			}
			if agent != nil {
				seen[agent.ID] = agent
			}
		}
	}

	agents := make([]*Agent, 0, len(seen))
	for _, a := range seen {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

// parseFile reads one definition. Returns (nil, nil) when the file is absent.
func (l *Loader) parseFile(path string, builtin bool) (*Agent, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, nil
	}

	meta, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	id := strings.TrimSuffix(filepath.Base(path), ".md")
	agent := &Agent{
		ID:           id,
		Name:         meta.Name,
		Model:        meta.Model,
		Color:        meta.Color,
		SystemPrompt: strings.TrimSpace(body),
		Builtin:      builtin,
	}
	if agent.Name == "" {
		agent.Name = id
	}
	if agent.Model == "" {
		agent.Model = defaultModel
	}
	if agent.Color == "" {
		agent.Color = defaultColor
	}
	return agent, nil
}

const frontMatterDelim = "---"

// splitFrontMatter separates a leading YAML front matter block from the body.
// A file without front matter is all body.
func splitFrontMatter(content string) (frontMatter, string, error) {
	var meta frontMatter

	rest, ok := strings.CutPrefix(content, frontMatterDelim+"\n")
	if !ok {
		return meta, content, nil
	}
	yamlPart, body, ok := strings.Cut(rest, "\n"+frontMatterDelim)
	if !ok {
		return meta, "", fmt.Errorf("unterminated front matter")
	}
	if err := yaml.Unmarshal([]byte(yamlPart), &meta); err != nil {
		return meta, "", fmt.Errorf("invalid front matter: %w", err)
	}
	body = strings.TrimPrefix(body, "\n")
	return meta, body, nil
}
