package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Close codes for rejected subscription handshakes.
const (
	closeMissingGent = 4000
	closeUnknownGent = 4001
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Push clients are trusted local UIs; there is no origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// syncConn serializes writes to a websocket connection. Gorilla allows
// only one concurrent writer, and the notification hub fans out on
// goroutines.
type syncConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func (s *syncConn) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.WriteJSON(v)
}

// handleWS accepts a push channel for one gent. The gent_id query
// parameter is required and must be a roster member; a handshake
// without one is closed before anything reaches the registry. Once
// registered, the connection sits in a keepalive read loop that
// discards inbound messages until the transport drops, then is
// unregistered exactly once.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	gentID := r.URL.Query().Get("gent_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	if gentID == "" {
		closeWith(conn, closeMissingGent, "missing gent_id")
		return
	}
	if !s.roster.Contains(gentID) {
		closeWith(conn, closeUnknownGent, "unknown gent id")
		return
	}

	channel := &syncConn{c: conn}
	s.registry.Register(gentID, channel)
	slog.Info("ws connected", "gent_id", gentID)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.registry.Unregister(gentID, channel)
	_ = conn.Close()
	slog.Info("ws disconnected", "gent_id", gentID)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}
