package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

type streamEvent struct {
	Type    string              `json:"type"`
	Message *models.ChatMessage `json:"message,omitempty"`
}

// StreamSession upgrades to a websocket and pushes the session transcript:
// the existing messages first, then each new one as it is appended. The
// stream ends when the client disconnects or the session is deleted.
func (h *Handlers) StreamSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before reading the backlog so nothing is missed in between.
	ts := s.Transcript()
	ch := ts.Subscribe()
	defer ts.Unsubscribe(ch)

	seen := make(map[string]struct{})
	for _, msg := range ts.Messages() {
		seen[msg.ID] = struct{}{}
		if err := writeEvent(conn, streamEvent{Type: "message", Message: &msg}); err != nil {
			return
		}
	}

	// Reader: handles pongs and notices the client going away.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				writeEvent(conn, streamEvent{Type: "closed"})
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(streamWriteWait))
				return
			}
			if _, dup := seen[msg.ID]; dup {
				delete(seen, msg.ID)
				continue
			}
			if err := writeEvent(conn, streamEvent{Type: "message", Message: &msg}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev streamEvent) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(ev)
}

// checkOrigin allows same-host requests, requests without an Origin header
// and any origin in AllowedOrigins.
func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}
