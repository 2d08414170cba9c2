// Package server provides the local HTTP interface: health, diagnostics,
// profile management and the overlay feeds.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/reticle/internal/monitor"
	"github.com/ayusman/reticle/internal/plugin"
	"github.com/ayusman/reticle/internal/server/api"
	"github.com/ayusman/reticle/internal/store"
)

// shutdownTimeout bounds how long Run waits for open requests on shutdown.
const shutdownTimeout = 3 * time.Second

// Armer toggles whether the control loop may actuate.
type Armer interface {
	Armed() bool
	SetArmed(armed bool)
}

// Config holds the server configuration. Nil collaborators disable their routes.
type Config struct {
	StaticDir string
	Store     *store.Store
	Hub       *monitor.Hub
	Arm       Armer
	Plugins   *plugin.Manager
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	boxes  *BoxesHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		profiles := api.NewProfileHandler(s.config.Store)
		s.mux.Handle("/api/profiles", profiles)
		s.mux.Handle("/api/profiles/", profiles)

		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.Hub != nil {
		s.mux.HandleFunc("/api/stats", s.handleStats)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Hub))

		s.boxes = NewBoxesHandler(s.config.Hub)
		s.mux.Handle("/api/boxes", s.boxes)
	}

	if s.config.Arm != nil {
		s.mux.HandleFunc("/api/arm", s.handleArm)
	}

	if s.config.Plugins != nil {
		s.mux.HandleFunc("/api/plugins", s.handlePlugins)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Msg("failed to encode response")
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleStats handles GET /api/stats with the loop's latest diagnostics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Hub.Stats())
}

type armRequest struct {
	Armed *bool `json:"armed"`
}

// handleArm reports (GET) or sets (POST {"armed": bool}) the actuation switch.
func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req armRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Armed == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": `body must be {"armed": true|false}`})
			return
		}
		s.config.Arm.SetArmed(*req.Armed)
		log.Info().Bool("armed", *req.Armed).Msg("actuation toggled over HTTP")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"armed": s.config.Arm.Armed()})
}

type pluginInfo struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description"`
	Kind        plugin.Kind `json:"kind"`
	Actions     []string    `json:"actions"`
}

// handlePlugins lists discovered plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := s.config.Plugins.List()
	out := make([]pluginInfo, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, pluginInfo{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Kind:        p.Manifest.Kind,
			Actions:     p.Manifest.Actions,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plugins": out})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}

// Close stops background broadcasters.
func (s *Server) Close() {
	if s.boxes != nil {
		s.boxes.Close()
	}
}
