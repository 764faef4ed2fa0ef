// Package server exposes conversations over websockets: one transport loop
// per client connection, with turn events fanned out to every connection
// attached to the same conversation.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/burrowhq/burrow/src/agents"
	"github.com/burrowhq/burrow/src/events"
	"github.com/burrowhq/burrow/src/interact"
	"github.com/burrowhq/burrow/src/provider"
	"github.com/burrowhq/burrow/src/session"
)

// DefaultKeepaliveInterval is how long a connection may sit idle before the
// server sends a keepalive notice instead of timing it out.
const DefaultKeepaliveInterval = 30 * time.Second

// clientMessage is the union of everything a client may send.
type clientMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Value     string `json:"value,omitempty"`
}

// Handler serves the websocket endpoint. All collaborators are owned by the
// composition root and shared across connections.
type Handler struct {
	Store    session.Store
	Agents   *agents.Loader
	Registry *interact.Registry
	Fanout   *Fanout
	Gate     *session.Gate
	Provider provider.Provider
	Bridge   session.Bridge

	// DefaultAgent names the agent used for conversations created on first
	// contact.
	DefaultAgent string

	KeepaliveInterval time.Duration
	AnswerTimeout     time.Duration
	Logger            *slog.Logger
}

// The UI is served from a different origin during development.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Register mounts the websocket route.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{conversation}", h.serveWS)
}

// turnHandle tracks the connection's in-flight turn task.
type turnHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation")
	logger := h.logger().With("conversation", conversationID)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	sink := &wsSink{ws: ws}
	h.Fanout.Attach(conversationID, sink)
	defer h.Fanout.Detach(conversationID, sink)

	connCtx, cancelConn := context.WithCancel(r.Context())
	defer cancelConn()

	// Reader goroutine: the select loop below must be free to service the
	// keepalive timer while no client message is in flight.
	msgs := make(chan clientMessage)
	go func() {
		defer close(msgs)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				logger.Debug("ignoring malformed client message", "err", err)
				continue
			}
			select {
			case msgs <- msg:
			case <-connCtx.Done():
				return
			}
		}
	}()

	interval := h.KeepaliveInterval
	if interval <= 0 {
		interval = DefaultKeepaliveInterval
	}
	keepalive := time.NewTimer(interval)
	defer keepalive.Stop()

	var current *turnHandle
	defer func() {
		if current != nil {
			current.cancel()
		}
	}()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				logger.Debug("client disconnected")
				return
			}
			if !keepalive.Stop() {
				select {
				case <-keepalive.C:
				default:
				}
			}
			keepalive.Reset(interval)

			switch msg.Type {
			case "ping":
				if err := sink.notice("pong"); err != nil {
					return
				}

			case "stop":
				if current != nil {
					current.cancel()
				}

			case "user_message":
				content := strings.TrimSpace(msg.Content)
				if content == "" {
					continue
				}
				// A new message supersedes the in-flight turn.
				if current != nil {
					current.cancel()
					<-current.done
				}
				current = h.startTurn(connCtx, conversationID, content, sink, logger)

			case "interaction_response":
				h.Registry.Resolve(msg.RequestID, msg.Value)

			default:
				logger.Debug("unknown client message type", "type", msg.Type)
			}

		case <-keepalive.C:
			if err := sink.notice("keepalive"); err != nil {
				logger.Debug("keepalive write failed, closing")
				return
			}
			keepalive.Reset(interval)
		}
	}
}

// startTurn launches the turn task. It never blocks the transport loop.
func (h *Handler) startTurn(connCtx context.Context, conversationID, content string, sink *wsSink, logger *slog.Logger) *turnHandle {
	ctx, cancel := context.WithCancel(connCtx)
	handle := &turnHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(handle.done)
		defer cancel()

		if !h.Gate.Acquire(conversationID) {
			logger.Warn("rejecting concurrent turn")
			h.sendError(sink, "a turn is already running for this conversation")
			return
		}
		defer h.Gate.Release(conversationID)

		state, err := h.loadOrCreate(ctx, conversationID)
		if err != nil {
			logger.Error("loading conversation failed", "err", err)
			h.sendError(sink, "failed to load conversation")
			return
		}

		agent, err := h.Agents.Load(state.AgentID)
		if err != nil || agent == nil {
			logger.Error("agent not found", "agent", state.AgentID, "err", err)
			h.sendError(sink, "agent not found: "+state.AgentID)
			return
		}

		engine := &session.Engine{
			Provider:      h.Provider,
			Store:         h.Store,
			Registry:      h.Registry,
			SystemPrompt:  agent.BuildSystemPrompt(),
			Bridge:        h.Bridge,
			AnswerTimeout: h.AnswerTimeout,
			Logger:        logger,
		}

		logger.Info("turn started")
		err = engine.RunTurn(ctx, state, content, func(ev events.Event) {
			h.Fanout.Send(conversationID, ev)
		})
		if err != nil {
			logger.Error("turn failed", "err", err)
			return
		}
		logger.Info("turn finished")
	}()

	return handle
}

// loadOrCreate fetches the conversation or creates it on first contact with
// the default agent.
func (h *Handler) loadOrCreate(ctx context.Context, id string) (*session.State, error) {
	state, err := h.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	agentID := h.DefaultAgent
	model := ""
	if agent, err := h.Agents.Load(agentID); err == nil && agent != nil {
		model = agent.Model
	}
	state = session.NewState(agentID, model)
	state.ID = id
	return state, nil
}

func (h *Handler) sendError(sink *wsSink, message string) {
	data, err := events.MarshalWire(events.Error{Message: message})
	if err != nil {
		return
	}
	_ = sink.Send(data)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
