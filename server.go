package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/oszuidwest/zwfm-levelmeter/internal/audio"
	"github.com/oszuidwest/zwfm-levelmeter/internal/server"
	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Meter    types.MeterStatus `json:"meter"`
	Clients  int               `json:"clients"`
	Platform string            `json:"platform"`
	Version  types.VersionInfo `json:"version"`
}

// Server is the HTTP server that exposes the live frame stream and status.
type Server struct {
	port    int
	hub     *server.Hub
	status  func() types.MeterStatus
	updates *UpdateChecker
}

// NewServer returns a Server streaming frames from hub.
// updates may be nil when release checks are disabled.
func NewServer(port int, hub *server.Hub, status func() types.MeterStatus, updates *UpdateChecker) *Server {
	return &Server{
		port:    port,
		hub:     hub,
		status:  status,
		updates: updates,
	}
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/devices", s.handleDevices)
	mux.HandleFunc("/healthz", s.handleHealth)

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := statusResponse{
		Meter:    s.status(),
		Clients:  s.hub.Clients(),
		Platform: runtime.GOOS,
		Version:  s.updates.Info(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDevices handles GET /api/devices.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": audio.Devices(),
	})
}

// handleHealth reports 200 while windows are being measured and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.status()
	code := http.StatusOK
	if st.State != types.StateRunning {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"state": string(st.State)})
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.SetupRoutes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
