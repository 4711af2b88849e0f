package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/technosupport/hikvision-bridge/internal/middleware"
	"github.com/technosupport/hikvision-bridge/internal/nvr"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token is checked before the upgrade
	},
}

// EventStreamHandler streams domain events to websocket clients.
type EventStreamHandler struct {
	Hub *nvr.Hub
}

func NewEventStreamHandler(hub *nvr.Hub) *EventStreamHandler {
	return &EventStreamHandler{Hub: hub}
}

// GET /api/v1/events/ws?token=...
func (h *EventStreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARN] WS Upgrade Failed: %v", err)
		return
	}
	defer conn.Close()

	operator := "unknown"
	if ac, ok := middleware.GetAuthContext(r.Context()); ok {
		operator = ac.Operator
	}

	events, release := h.Hub.Subscribe()
	defer release()
	log.Printf("[INFO] WS Connected: operator=%s clients=%d", operator, h.Hub.Clients())

	// Reader: only control frames are expected; it ends on close or error.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Printf("[INFO] WS Disconnected: operator=%s", operator)
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[WARN] WS write to %s failed: %v", operator, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
