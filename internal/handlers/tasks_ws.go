package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskbrew/taskbrew-backend/internal/services"
	"github.com/taskbrew/taskbrew-backend/internal/session"
)

const (
	wsReadLimit    = 4 * 1024
	wsReadTimeout  = 90 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// TaskStreamHandler pushes the caller's own task changes over a
// WebSocket. Each connection subscribes to the owner's private Redis
// channel, so cross-user leakage is structurally impossible: the channel
// name is derived from the session, never from client input.
type TaskStreamHandler struct {
	Sessions       *session.Manager
	Events         *services.TaskEvents
	AllowedOrigins []string
}

func NewTaskStreamHandler(sessions *session.Manager, events *services.TaskEvents, allowedOrigins []string) *TaskStreamHandler {
	return &TaskStreamHandler{Sessions: sessions, Events: events, AllowedOrigins: allowedOrigins}
}

func (h *TaskStreamHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true // non-browser clients
	}
	for _, allowed := range h.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

// ServeTaskStream authenticates via the session cookie (browsers send it
// on the upgrade request), upgrades, and forwards the owner's task events
// until either side goes away.
func (h *TaskStreamHandler) ServeTaskStream(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Resolve(r.Context(), r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized - Please log in")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.Events.Subscribe(ctx, s.UserID)
	defer pubsub.Close()

	// Writer: forward events and keep the connection alive with pings.
	go func() {
		defer cancel()
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		events := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	// Reader: the stream is one-way, but we still have to drain control
	// frames and notice disconnects.
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
