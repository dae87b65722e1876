// Package ws exposes the session event feed over a read-only WebSocket.
package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tripmind/backend/internal/domain"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// Server bridges the event broadcaster to WebSocket observers.
type Server struct {
	subscribe      func(sessionID string) (<-chan domain.Event, func())
	pingInterval   time.Duration
	maxMessageSize int64
	upgrader       websocket.Upgrader
}

// NewServer creates a WebSocket server over the given subscribe function.
func NewServer(subscribe func(sessionID string) (<-chan domain.Event, func()), pingInterval time.Duration, maxMessageSize int64) *Server {
	if maxMessageSize <= 0 {
		maxMessageSize = 512
	}
	return &Server{
		subscribe:      subscribe,
		pingInterval:   pingInterval,
		maxMessageSize: maxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients connect from the app frontend.
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/:session_id", s.Handle)
}

// Handle upgrades the connection and streams session events until the
// client disconnects. Inbound messages are ignored; the socket is
// observe-only.
func (s *Server) Handle(c echo.Context) error {
	sessionID := c.Param("session_id")

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ch, cancel := s.subscribe(sessionID)

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, ch, done)

	cancel()
	conn.Close()
	return nil
}

// readPump drains the connection so pongs and close frames are processed.
func (s *Server) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(s.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, ch <-chan domain.Event, done chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, open := <-ch:
			if !open {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("WARN: ws write for session %s failed: %v", ev.SessionID, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
