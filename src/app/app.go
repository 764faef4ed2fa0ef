// Package app is the composition root: it owns every shared component and
// wires them together, so nothing in the tree reaches for global state.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/burrowhq/burrow/src/agents"
	"github.com/burrowhq/burrow/src/config"
	"github.com/burrowhq/burrow/src/interact"
	"github.com/burrowhq/burrow/src/messaging"
	"github.com/burrowhq/burrow/src/provider/claudecli"
	"github.com/burrowhq/burrow/src/server"
	"github.com/burrowhq/burrow/src/session"
	"github.com/burrowhq/burrow/src/storage"
)

// App holds the wired application.
type App struct {
	Config   *config.Config
	Store    *storage.DB
	Registry *interact.Registry
	Fanout   *server.Fanout
	Gate     *session.Gate
	Agents   *agents.Loader
	Provider *claudecli.Provider
	Bridge   session.Bridge
	Handler  *server.Handler
	Logger   *slog.Logger
}

// New builds the application from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.AgentsDir, 0o755); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create agents directory: %w", err)
	}

	registry := interact.NewRegistry()
	fanout := server.NewFanout(logger)
	gate := session.NewGate()
	loader := agents.NewLoader(afero.NewOsFs(), cfg.Storage.AgentsDir, cfg.Storage.BuiltinAgentsDir, logger)
	prov := claudecli.New(claudecli.Config{
		Bin:    cfg.Claude.Bin,
		Model:  cfg.Claude.Model,
		Logger: logger,
	})
	bridge := &messaging.LogBridge{Logger: logger}

	handler := &server.Handler{
		Store:             store,
		Agents:            loader,
		Registry:          registry,
		Fanout:            fanout,
		Gate:              gate,
		Provider:          prov,
		Bridge:            bridge,
		DefaultAgent:      cfg.DefaultAgent,
		KeepaliveInterval: time.Duration(cfg.Server.KeepaliveSeconds) * time.Second,
		AnswerTimeout:     time.Duration(cfg.Session.AnswerTimeoutSeconds) * time.Second,
		Logger:            logger,
	}

	return &App{
		Config:   cfg,
		Store:    store,
		Registry: registry,
		Fanout:   fanout,
		Gate:     gate,
		Agents:   loader,
		Provider: prov,
		Bridge:   bridge,
		Handler:  handler,
		Logger:   logger,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
