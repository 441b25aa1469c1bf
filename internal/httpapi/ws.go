package httpapi

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrNoListener means no websocket is attached to the session; callers fall
// back to the polled session state.
var ErrNoListener = errors.New("no websocket listener")

type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSHub pushes feedback and submission outcomes to connected browsers, one
// connection per form session. It is the server-side counterpart of the
// success snackbar: the browser hears about outcomes without polling.
type WSHub struct {
	mu       sync.RWMutex
	sessions map[string]*wsSession
	logger   *slog.Logger
}

func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{sessions: make(map[string]*wsSession), logger: logger}
}

func (h *WSHub) Add(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.sessions[sessionID]; ok {
		_ = prev.conn.Close()
	}
	h.sessions[sessionID] = &wsSession{conn: conn}
}

func (h *WSHub) Remove(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[sessionID]; ok {
		_ = s.conn.Close()
		delete(h.sessions, sessionID)
	}
}

func (h *WSHub) Notify(sessionID string, v any) error {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoListener
	}
	if err := s.send(v); err != nil {
		h.logger.Warn("ws send error", "session", sessionID, "error", err)
		h.Remove(sessionID)
		return err
	}
	return nil
}
