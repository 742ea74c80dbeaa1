// Package api serves the monitor endpoints: health, configuration, run
// statistics, the control table and a websocket stream of control values.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/config"
	"github.com/bryanchriswhite/cameramidi/internal/display"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Version is reported by /api/health
const Version = "0.1.0"

// Source is the running pipeline as seen by the server
type Source interface {
	Settings() pipeline.Settings
	State() pipeline.State
	Counters() pipeline.Counters
	Last() (pipeline.FrameResult, bool)
}

// Stats is the /api/stats payload
type Stats struct {
	Session  string                `json:"session,omitempty"`
	State    string                `json:"state"`
	Uptime   string                `json:"uptime"`
	Counters pipeline.Counters     `json:"counters"`
	Last     *pipeline.FrameResult `json:"last,omitempty"`
	Stream   *display.StreamStats  `json:"stream,omitempty"`
	Clients  int                   `json:"control_clients"`
	Dropped  uint64                `json:"control_updates_dropped"`
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	source   Source
	cfg      *config.Config
	hub      *Hub
	stream   *display.MJPEGStream
	session  string
	started  time.Time
	upgrader websocket.Upgrader
	srv      *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithStream serves the MJPEG preview at /stream, /snapshot.jpg and /
func WithStream(stream *display.MJPEGStream) Option {
	return func(s *Server) { s.stream = stream }
}

// WithSession tags /api/stats with the run's session ID
func WithSession(id string) Option {
	return func(s *Server) { s.session = id }
}

// NewServer creates a new API server. The hub must be registered as a
// pipeline observer for /api/controls/stream to see updates.
func NewServer(source Source, cfg *config.Config, hub *Hub, opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		source:  source,
		cfg:     cfg,
		hub:     hub,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/controls", s.handleControls).Methods("GET")
	api.HandleFunc("/controls/stream", s.handleControlsStream)

	if s.stream != nil {
		s.router.HandleFunc("/stream", s.stream.StreamHandler()).Methods("GET")
		s.router.HandleFunc("/snapshot.jpg", s.stream.SnapshotHandler()).Methods("GET")
		s.router.HandleFunc("/", s.stream.ViewerHandler()).Methods("GET")
	}
}

// Handler returns the routed handler with CORS headers applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start listens on port and serves until Shutdown. It returns once the
// listener is bound; serve errors are logged.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log := logger.WithComponent("api")
	log.Info().Str("addr", "http://localhost"+addr).Msg("Starting monitor server")

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Monitor server failed")
		}
	}()
	return nil
}

// Shutdown stops the server and disconnects websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": Version,
		"state":   s.source.State().String(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := Stats{
		Session:  s.session,
		State:    s.source.State().String(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Counters: s.source.Counters(),
		Clients:  s.hub.Clients(),
		Dropped:  s.hub.Dropped(),
	}
	if last, ok := s.source.Last(); ok {
		stats.Last = &last
	}
	if s.stream != nil {
		st := s.stream.Stats()
		stats.Stream = &st
	}
	writeJSON(w, stats)
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	settings := s.source.Settings()
	writeJSON(w, map[string]interface{}{
		"variant":  settings.Variant.String(),
		"controls": settings.Mapping.Table(settings.Variant),
	})
}

func (s *Server) handleControlsStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(updates)

	// The client never sends anything meaningful; reading detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if last, ok := s.hub.Last(); ok {
		if err := conn.WriteJSON(last); err != nil {
			log.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case update, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteJSON(update); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}
