package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/prestige-dev/prestige/internal/directive"
	"github.com/prestige-dev/prestige/internal/logger"
	"github.com/prestige-dev/prestige/internal/problems"
)

const defaultPort = 8947

// Server exposes processing events over WebSocket plus a small JSON API.
type Server struct {
	port      int
	hub       *Hub
	canceller Canceller
	router    *httprouter.Router
	server    *http.Server
	debug     bool

	mu         sync.RWMutex
	lastReport *problems.Report
}

// NewServer creates the event server. canceller may be nil when streams
// cannot be cancelled remotely.
func NewServer(port int, canceller Canceller, debug bool) *Server {
	if port <= 0 {
		port = defaultPort
	}
	s := &Server{
		port:      port,
		hub:       NewHub(),
		canceller: canceller,
		router:    httprouter.New(),
		debug:     debug,
	}
	s.setupRoutes()
	return s
}

// Hub returns the event hub for direct broadcasting.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the hub and the HTTP server in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("localhost:%d", s.port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go s.hub.Run()
	go func() {
		logger.Info("Event server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop stops the hub and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.hub.Stop()
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/api/report", s.handleReport)
	s.router.GET("/ws", s.handleWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.RLock()
	report := s.lastReport
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if report == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no report yet"})
		return
	}
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // local tool, served on localhost only
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.canceller, s.debug)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// PublishProgress broadcasts an auto-fix attempt starting.
func (s *Server) PublishProgress(sessionID string, attempt int, remaining []problems.Problem) {
	s.hub.Broadcast(&Event{
		Type:      EventTypeProgress,
		SessionID: sessionID,
		Attempt:   attempt,
		Problems:  remaining,
		Timestamp: time.Now(),
	})
}

// PublishOperations broadcasts the current parsed operation list.
func (s *Server) PublishOperations(sessionID string, ops []*directive.Operation) {
	s.hub.Broadcast(&Event{
		Type:       EventTypeOperations,
		SessionID:  sessionID,
		Operations: ops,
		Timestamp:  time.Now(),
	})
}

// PublishReport broadcasts a problem report and keeps it for /api/report.
func (s *Server) PublishReport(sessionID string, report *problems.Report) {
	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	s.hub.Broadcast(&Event{
		Type:      EventTypeReport,
		SessionID: sessionID,
		Problems:  report.Problems,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"total_errors":   report.TotalErrors,
			"total_warnings": report.TotalWarnings,
		},
	})
}

// PublishCommand broadcasts a rebuild/restart/refresh request.
func (s *Server) PublishCommand(sessionID, commandType string) {
	s.hub.Broadcast(&Event{
		Type:      EventTypeCommand,
		SessionID: sessionID,
		Content:   commandType,
		Timestamp: time.Now(),
	})
}

// PublishIntegration broadcasts an integration setup request.
func (s *Server) PublishIntegration(sessionID, provider string) {
	s.hub.Broadcast(&Event{
		Type:      EventTypeIntegration,
		SessionID: sessionID,
		Content:   provider,
		Timestamp: time.Now(),
	})
}

// PublishComplete broadcasts the final visible response text.
func (s *Server) PublishComplete(sessionID, finalText string) {
	s.hub.Broadcast(&Event{
		Type:      EventTypeComplete,
		SessionID: sessionID,
		Content:   finalText,
		Timestamp: time.Now(),
	})
}

// PublishError broadcasts a processing error.
func (s *Server) PublishError(sessionID string, err error) {
	s.hub.Broadcast(&Event{
		Type:      EventTypeError,
		SessionID: sessionID,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}
