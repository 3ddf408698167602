package webmonitor

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/herdwatch/live-overlay/internal/logger"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleDetectionsWebSocket pushes every detection event as a JSON text
// message. Incoming messages are read only to notice disconnects.
func (s *Server) handleDetectionsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket", "Upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, eventCh := s.detectionBroadcaster.Subscribe()
	defer s.detectionBroadcaster.Unsubscribe(id)
	s.metrics.WebSocketClients.Add(1)
	defer s.metrics.WebSocketClients.Add(-1)
	logger.Debug("WebSocket", "Viewer #%d connected", id)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logger.Debug("WebSocket", "Viewer #%d disconnected: %v", id, err)
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-eventCh:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, event.JSONData); err != nil {
				logger.Debug("WebSocket", "Write to viewer #%d failed: %v", id, err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
