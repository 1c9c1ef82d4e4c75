// Package server streams meter frames to WebSocket clients.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

const (
	// clientBuffer is the number of messages queued per client before frames are dropped.
	clientBuffer = 16
	// statusInterval is how often each client receives a status message.
	statusInterval = 3000 * time.Millisecond
)

// FrameMessage carries one meter frame.
type FrameMessage struct {
	Type  string       `json:"type"`
	Frame *types.Frame `json:"frame"`
}

// StatusMessage carries the meter status.
type StatusMessage struct {
	Type   string            `json:"type"`
	Status types.MeterStatus `json:"status"`
}

// Hub broadcasts frames to all connected WebSocket clients. Slow clients
// miss frames instead of stalling the meter loop.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	status  func() types.MeterStatus
}

// NewHub creates a hub. status, when non-nil, is sent to each client on
// connect and every few seconds.
func NewHub(status func() types.MeterStatus) *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		status:  status,
	}
}

// Publish sends f to every client that has room for it.
func (h *Hub) Publish(f *types.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return nil
	}

	msg, err := json.Marshal(FrameMessage{Type: "frame", Frame: f})
	if err != nil {
		return err
	}

	for send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register() chan []byte {
	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[send] = struct{}{}
	h.mu.Unlock()
	return send
}

// unregister removes send and closes it. Publish holds the lock while
// sending, so no send can race with the close.
func (h *Hub) unregister(send chan []byte) {
	h.mu.Lock()
	delete(h.clients, send)
	close(send)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	send := h.register()
	done := make(chan struct{})

	// Writer goroutine - sole writer to the connection
	go runWriter(conn, send)

	// Reader goroutine - detects disconnects; clients send nothing
	go runReader(conn, done)

	h.runStatusLoop(send, done)
	h.unregister(send)
}

// runWriter writes messages from the send channel to the connection.
func runWriter(conn WebSocketConn, send <-chan []byte) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// runReader discards incoming messages and closes done when the client goes away.
func runReader(conn WebSocketConn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// runStatusLoop sends periodic status updates until done is closed.
func (h *Hub) runStatusLoop(send chan<- []byte, done <-chan struct{}) {
	if h.status == nil {
		<-done
		return
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	h.sendStatus(send)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			h.sendStatus(send)
		}
	}
}

func (h *Hub) sendStatus(send chan<- []byte) {
	msg, err := json.Marshal(StatusMessage{Type: "status", Status: h.status()})
	if err != nil {
		slog.Error("failed to encode status", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case send <- msg:
	default:
	}
}
