package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]json.RawMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestHubBroadcastsFrames(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, h, 2)

	frame := &types.Frame{Cycle: 7, ScaleMax: 32, Channels: []types.ChannelFrame{{Level: 12, PeakLevel: 20}}}
	if err := h.Publish(frame); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if string(msg["type"]) != `"frame"` {
			t.Fatalf("type = %s, want frame", msg["type"])
		}
		var got types.Frame
		if err := json.Unmarshal(msg["frame"], &got); err != nil {
			t.Fatal(err)
		}
		if got.Cycle != 7 || got.Channels[0].PeakLevel != 20 {
			t.Errorf("frame = %+v", got)
		}
	}
}

func TestHubSendsStatusOnConnect(t *testing.T) {
	h := NewHub(func() types.MeterStatus {
		return types.MeterStatus{State: types.StateRunning, Cycles: 42}
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	msg := readMessage(t, dial(t, srv))
	if string(msg["type"]) != `"status"` {
		t.Fatalf("type = %s, want status", msg["type"])
	}
	var st types.MeterStatus
	if err := json.Unmarshal(msg["status"], &st); err != nil {
		t.Fatal(err)
	}
	if st.State != types.StateRunning || st.Cycles != 42 {
		t.Errorf("status = %+v", st)
	}
}

func TestHubDropsFramesForSlowClients(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	_ = dial(t, srv)
	waitForClients(t, h, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 10 * clientBuffer {
			_ = h.Publish(&types.Frame{Cycle: uint64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish() blocked on a client that does not read")
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "meter.local:8080", true},
		{"http://localhost:3000", "meter.local:8080", true},
		{"http://meter.local:8080", "meter.local:8080", true},
		{"http://192.168.1.20", "meter.local:8080", true},
		{"https://evil.example.com", "meter.local:8080", false},
		{"://bad", "meter.local:8080", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
