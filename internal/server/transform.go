package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/engine"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/pipeline"
)

type processPhotoRequest struct {
	// SourceImage and CapturedImage are aliases; frontend versions differ.
	SourceImage        string `json:"source_image"`
	CapturedImage      string `json:"captured_image"`
	TargetImage        string `json:"target_image,omitempty"`
	TransformationType string `json:"transformation_type,omitempty"`
	Gender             string `json:"gender,omitempty"`
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
}

func (r processPhotoRequest) source() string {
	if r.SourceImage != "" {
		return r.SourceImage
	}
	return r.CapturedImage
}

type processPhotoResponse struct {
	Success            bool   `json:"success"`
	ImageURL           string `json:"image_url"`
	OriginalURL        string `json:"original_url,omitempty"`
	TransformationType string `json:"transformation_type"`
	Message            string `json:"message"`
}

// handleProcessPhoto runs the full transformation pipeline for one photo.
func (s *Server) handleProcessPhoto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req processPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.source() == "" {
		writeError(w, http.StatusBadRequest, "No image data provided")
		return
	}

	result, err := s.config.Transformer.Process(r.Context(), pipeline.Request{
		SourceImage: req.source(),
		TargetImage: req.TargetImage,
		Kind:        req.TransformationType,
		Gender:      req.Gender,
		Name:        req.Name,
		Email:       req.Email,
	})
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "Invalid image data")
		return
	default:
		log.Error().Err(err).Msg("transformation failed")
		writeError(w, http.StatusInternalServerError, "Transformation failed")
		return
	}

	writeJSON(w, http.StatusOK, processPhotoResponse{
		Success:            true,
		ImageURL:           result.ImageURL,
		OriginalURL:        result.OriginalURL,
		TransformationType: string(result.Kind),
		Message:            "Photo processed successfully",
	})
}

// maxSwapUpload bounds the multipart form size for the direct swap endpoint.
const maxSwapUpload = 32 << 20

// handleSwapFace swaps between two uploaded images and returns the composited
// image directly. The swap is still recorded in the ledgers.
func (s *Server) handleSwapFace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxSwapUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Expected multipart form data")
		return
	}

	name := r.FormValue("name")
	email := r.FormValue("email")
	if name == "" || email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	source, err := formFile(r, "sourceImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing source image")
		return
	}
	target, err := formFile(r, "targetImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing target image")
		return
	}

	out, err := s.config.Transformer.SwapDirect(r.Context(), source, target, name, email)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrNoFace):
		writeError(w, http.StatusBadRequest, "No faces detected")
		return
	default:
		log.Error().Err(err).Msg("direct swap failed")
		writeError(w, http.StatusInternalServerError, "Face swap failed")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(out)
}

func formFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

type processLinkedInRequest struct {
	Image      string `json:"image"`
	Background string `json:"background,omitempty"`
}

// handleProcessLinkedIn produces a square profile portrait.
func (s *Server) handleProcessLinkedIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req processLinkedInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
		writeError(w, http.StatusBadRequest, "No image data provided")
		return
	}

	photo, err := pipeline.DecodeImage(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	portrait, err := s.config.Portraits.Process(photo, req.Background)
	if err != nil {
		log.Error().Err(err).Msg("headshot processing failed")
		writeError(w, http.StatusInternalServerError, "Headshot processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"image":   dataURI(portrait),
	})
}

func dataURI(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}
