package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	appselection "segment-selector/application/selection"
	"segment-selector/domain/selection"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message types sent to stream clients
const (
	MessageSnapshot = "snapshot"
	MessageError    = "error"
)

// StreamMessage is one frame written to a stream client
type StreamMessage struct {
	Type    string                 `json:"type"`
	Session *appselection.Snapshot `json:"session,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range s.origins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// stream handles GET /v1/sessions/{sessionId}/ws.
// Every snapshot of the session is pushed to the client, and events sent by
// the client are dispatched to the session in arrival order
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	updates, cancel, err := s.sessions.Subscribe(id)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	defer cancel()

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("session", id), zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg StreamMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					writeMu.Lock()
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
						time.Now().Add(writeWait))
					writeMu.Unlock()
					conn.Close()
					return
				}
				if err := send(StreamMessage{Type: MessageSnapshot, Session: &snap}); err != nil {
					return
				}
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev selection.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("stream read ended", zap.String("session", id), zap.Error(err))
			}
			break
		}

		// successful events reach the client through the subscription
		if _, err := s.sessions.Dispatch(id, ev); err != nil {
			if send(StreamMessage{Type: MessageError, Error: err.Error()}) != nil {
				break
			}
		}
	}

	cancel()
	<-done
}
