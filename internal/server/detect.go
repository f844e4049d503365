package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/gesture"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/metrics"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/pipeline"
)

type detectPalmRequest struct {
	Image string `json:"image"`
}

type detectPalmResponse struct {
	Success      bool    `json:"success"`
	PalmDetected bool    `json:"palm_detected"`
	Message      string  `json:"message"`
	Timestamp    float64 `json:"timestamp"`
}

// handleDetectPalm evaluates one camera frame against the trigger state
// machine. Detection failures are reported inside a success envelope so the
// kiosk frontend keeps polling instead of treating them as outages.
func (s *Server) handleDetectPalm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req detectPalmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
		writeError(w, http.StatusBadRequest, "No image data provided")
		return
	}

	now := float64(time.Now().UnixNano()) / float64(time.Second)

	if !s.enabled.Load() {
		writeJSON(w, http.StatusOK, detectPalmResponse{
			Success:   true,
			Message:   "Detection paused",
			Timestamp: now,
		})
		return
	}

	frame, err := pipeline.DecodeImage(req.Image)
	if err != nil {
		s.respondDetectError(w, err, now)
		return
	}

	hands, err := s.config.Detector.Detect(frame)
	if err != nil {
		s.respondDetectError(w, err, now)
		return
	}

	result := s.config.Trigger.Evaluate(hands)
	metrics.TriggerOutcomes.WithLabelValues(string(result.Outcome)).Inc()

	if result.Triggered() {
		s.events.Publish(TriggerEvent{
			Type:      "palm_trigger",
			Timestamp: now,
		})
	}

	writeJSON(w, http.StatusOK, detectPalmResponse{
		Success:      true,
		PalmDetected: result.Triggered(),
		Message:      result.Message,
		Timestamp:    now,
	})
}

func (s *Server) respondDetectError(w http.ResponseWriter, err error, now float64) {
	log.Warn().Err(err).Msg("palm detection failed")
	result := gesture.ErrorResult(err)
	metrics.TriggerOutcomes.WithLabelValues(string(result.Outcome)).Inc()
	writeJSON(w, http.StatusOK, detectPalmResponse{
		Success:   true,
		Message:   result.Message,
		Timestamp: now,
	})
}

// handleReset clears the trigger cooldown.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.ResetCooldown()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Cooldown reset",
	})
}
