package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// wsSink serializes writes to one websocket connection. The fan-out and the
// connection's own loop both write through it, so all writes share one mutex.
type wsSink struct {
	mu sync.Mutex
	ws *websocket.Conn
}

var _ Sink = (*wsSink)(nil)

func (s *wsSink) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

// notice sends a server-originated system message (pong, keepalive).
func (s *wsSink) notice(text string) error {
	data, err := json.Marshal(systemNotice{Type: "system", Text: text})
	if err != nil {
		return err
	}
	return s.Send(data)
}

type systemNotice struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
