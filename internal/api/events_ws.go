package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait     = 60 * time.Second
	wsPingInterval = 20 * time.Second
	wsWriteWait    = 5 * time.Second
)

// wsMessage is the frame exchanged on the events stream.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EventsWSHandler streams a session's status events over WebSocket. The first
// frame is a snapshot; every later frame is a status event. Clients may send
// {"type":"ping"} and get {"type":"pong"}.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var wmu sync.Mutex
	write := func(msg wsMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}
	payload := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}

	ch := s.Broker.Subscribe(sess.ID)
	defer s.Broker.Unsubscribe(sess.ID, ch)

	if err := write(wsMessage{Type: "snapshot", Payload: payload(sess.Snapshot())}); err != nil {
		return
	}
	s.Log.Debug("events stream opened", zap.String("session", sess.ID))

	done := make(chan struct{})
	// Read loop: keeps deadlines fresh and answers pings.
	go func() {
		defer close(done)
		conn.SetReadLimit(1 << 16)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			if msg.Type == "ping" {
				_ = write(wsMessage{Type: "pong"})
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(wsMessage{Type: evt.Type, Payload: payload(evt)}); err != nil {
				return
			}
		case <-ticker.C:
			wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
