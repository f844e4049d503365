// Package server provides the HTTP surface of the photobooth kiosk service.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/detector"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/gesture"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/metrics"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/pipeline"
)

// Transformer runs photo transformations. Implemented by pipeline.Processor.
type Transformer interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	SwapDirect(ctx context.Context, source, target []byte, name, email string) ([]byte, error)
}

// PortraitMaker produces profile headshots. Implemented by headshot.Processor.
type PortraitMaker interface {
	Process(photo []byte, background string) ([]byte, error)
}

// ImageSource serves locally cached results. Implemented by resultcache.Cache.
type ImageSource interface {
	Get(id string) ([]byte, bool)
}

// Config holds the server configuration.
type Config struct {
	Detector       detector.Detector
	Trigger        *gesture.Trigger
	Transformer    Transformer
	Portraits      PortraitMaker
	Images         ImageSource
	AllowedOrigins []string
	// Addr is the listen address, reported as the port in /health.
	Addr    string
	Version string
}

// Server represents the HTTP server for the kiosk.
type Server struct {
	config  Config
	mux     *http.ServeMux
	events  *EventHub
	start   time.Time
	enabled atomic.Bool
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		events: NewEventHub(),
		start:  time.Now(),
	}
	s.enabled.Store(true)
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/detect_palm", s.handleDetectPalm)
	s.mux.HandleFunc("/reset", s.handleReset)
	s.mux.HandleFunc("/image/", s.handleImage)

	if s.config.Transformer != nil {
		s.mux.HandleFunc("/api/process-photo", s.handleProcessPhoto)
		s.mux.HandleFunc("/api/swap-face/", s.handleSwapFace)
	}
	if s.config.Portraits != nil {
		s.mux.HandleFunc("/api/process-linkedin", s.handleProcessLinkedIn)
	}

	s.mux.Handle("/api/events", s.events)
	s.mux.Handle("/metrics", metrics.Handler())
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withCORS(s.config.AllowedOrigins, s.mux).ServeHTTP(w, r)
}

// Events returns the trigger event hub, for external publishers.
func (s *Server) Events() *EventHub {
	return s.events
}

// SetDetectionEnabled pauses or resumes palm detection. Used by the tray.
func (s *Server) SetDetectionEnabled(enabled bool) {
	s.enabled.Store(enabled)
	log.Info().Bool("enabled", enabled).Msg("palm detection toggled")
}

// DetectionEnabled reports whether palm detection is active.
func (s *Server) DetectionEnabled() bool {
	return s.enabled.Load()
}

// ResetCooldown clears the trigger cooldown. Used by the tray and /reset.
func (s *Server) ResetCooldown() {
	if s.config.Trigger != nil {
		s.config.Trigger.Reset()
	}
}

// handleHealth handles GET requests to /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "photobooth-backend",
		"features": s.features(),
		"port":     portOf(s.config.Addr),
		"version":  s.config.Version,
		"uptime":   time.Since(s.start).String(),
	})
}

func (s *Server) features() []string {
	features := []string{"hand_detection"}
	if s.config.Transformer != nil {
		features = append(features, "face_swapping")
	}
	if s.config.Portraits != nil {
		features = append(features, "linkedin_headshot")
	}
	return features
}

// portOf extracts the numeric port from a listen address like ":5555".
func portOf(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}

// handleImage serves locally cached transformation results.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.config.Images == nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/image/")
	data, ok := s.config.Images.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}
