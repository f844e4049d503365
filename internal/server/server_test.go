package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/detector"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/engine"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/gesture"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/pipeline"
)

type stubTransformer struct {
	result    *pipeline.Result
	err       error
	swapped   []byte
	swapErr   error
	lastReq   pipeline.Request
	swapName  string
	swapEmail string
}

func (s *stubTransformer) Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *stubTransformer) SwapDirect(ctx context.Context, source, target []byte, name, email string) ([]byte, error) {
	s.swapName = name
	s.swapEmail = email
	return s.swapped, s.swapErr
}

type stubPortraits struct {
	out []byte
	err error
}

func (s stubPortraits) Process(photo []byte, background string) ([]byte, error) {
	return s.out, s.err
}

type stubImages struct {
	images map[string][]byte
}

func (s stubImages) Get(id string) ([]byte, bool) {
	data, ok := s.images[id]
	return data, ok
}

func newTestServer(t *testing.T, mock *detector.MockDetector, transformer *stubTransformer) *Server {
	t.Helper()
	return New(Config{
		Detector:    mock,
		Trigger:     gesture.NewTrigger(gesture.DefaultCooldown),
		Transformer: transformer,
		Portraits:   stubPortraits{out: []byte("portrait")},
		Images:      stubImages{images: map[string][]byte{"known": []byte("jpeg")}},
		Addr:        ":5555",
		Version:     "0.0.1",
	})
}

func postJSON(t *testing.T, s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func framePayload() string {
	return base64.StdEncoding.EncodeToString([]byte("camera-frame"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, detector.NewMockDetector(), &stubTransformer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected status healthy, got %v", body["status"])
	}
	if body["service"] != "photobooth-backend" {
		t.Errorf("unexpected service name %v", body["service"])
	}
	if body["port"] != float64(5555) {
		t.Errorf("expected port 5555, got %v", body["port"])
	}
	if body["version"] != "0.0.1" {
		t.Errorf("unexpected version %v", body["version"])
	}

	features, _ := body["features"].([]interface{})
	want := map[string]bool{"hand_detection": false, "face_swapping": false}
	for _, f := range features {
		if name, ok := f.(string); ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("feature %q missing from %v", name, features)
		}
	}
}

func TestDetectPalm_MissingImage(t *testing.T) {
	s := newTestServer(t, detector.NewMockDetector(), &stubTransformer{})

	rec := postJSON(t, s, "/detect_palm", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body errorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "No image data provided" {
		t.Errorf("unexpected error message %q", body.Error)
	}
}

func TestDetectPalm_OpenPalmFires(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	s := newTestServer(t, mock, &stubTransformer{})

	rec := postJSON(t, s, "/detect_palm", map[string]string{"image": framePayload()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body detectPalmResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || !body.PalmDetected {
		t.Errorf("expected a palm trigger, got %+v", body)
	}
	if body.Message != "Palm detected" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if body.Timestamp == 0 {
		t.Error("expected a timestamp")
	}
}

func TestDetectPalm_CooldownBlocksSecondTrigger(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	s := newTestServer(t, mock, &stubTransformer{})

	postJSON(t, s, "/detect_palm", map[string]string{"image": framePayload()})
	rec := postJSON(t, s, "/detect_palm", map[string]string{"image": framePayload()})

	var body detectPalmResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.PalmDetected {
		t.Error("second trigger inside the cooldown must not fire")
	}
	if !strings.HasPrefix(body.Message, "Cooldown active") {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestDetectPalm_FistDoesNotFire(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})
	s := newTestServer(t, mock, &stubTransformer{})

	rec := postJSON(t, s, "/detect_palm", map[string]string{"image": framePayload()})

	var body detectPalmResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.PalmDetected {
		t.Error("a fist must not trigger")
	}
	if body.Message != "Hand detected but palm not open" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestDetectPalm_DetectorErrorStaysSuccessful(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetError(errors.New("bridge process died"))
	s := newTestServer(t, mock, &stubTransformer{})

	rec := postJSON(t, s, "/detect_palm", map[string]string{"image": framePayload()})
	if rec.Code != http.StatusOK {
		t.Fatalf("detector errors must stay 200, got %d", rec.Code)
	}

	var body detectPalmResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || body.PalmDetected {
		t.Errorf("expected a non-trigger success envelope, got %+v", body)
	}
	if !strings.HasPrefix(body.Message, "Error:") {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestDetectPalm_Paused(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	s := newTestServer(t, mock, &stubTransformer{})
	s.SetDetectionEnabled(false)

	rec := postJSON(t, s, "/detect_palm", map[string]string{"image": framePayload()})

	var body detectPalmResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.PalmDetected {
		t.Error("paused detection must not trigger")
	}
	if body.Message != "Detection paused" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

func TestReset_AllowsImmediateRetrigger(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	s := newTestServer(t, mock, &stubTransformer{})

	postJSON(t, s, "/detect_palm", map[string]string{"image": framePayload()})

	rec := postJSON(t, s, "/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from reset, got %d", rec.Code)
	}

	rec = postJSON(t, s, "/detect_palm", map[string]string{"image": framePayload()})
	var body detectPalmResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.PalmDetected {
		t.Error("expected an immediate trigger after reset")
	}
}

func TestProcessPhoto_Success(t *testing.T) {
	transformer := &stubTransformer{result: &pipeline.Result{
		ImageURL:    "https://cdn.example.com/outputs/img.jpg",
		OriginalURL: "https://cdn.example.com/originals/img.jpg",
		Kind:        pipeline.KindAITransformation,
	}}
	s := newTestServer(t, detector.NewMockDetector(), transformer)

	rec := postJSON(t, s, "/api/process-photo", map[string]string{
		"source_image":        framePayload(),
		"gender":              "Male",
		"name":                "Dana",
		"email":               "dana@example.com",
		"transformation_type": "AITransformation",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body processPhotoResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || body.ImageURL == "" {
		t.Errorf("unexpected response %+v", body)
	}
	if body.TransformationType != "AI Transformation" {
		t.Errorf("unexpected transformation type %q", body.TransformationType)
	}
	if transformer.lastReq.Gender != "Male" || transformer.lastReq.Email != "dana@example.com" {
		t.Errorf("request fields not forwarded: %+v", transformer.lastReq)
	}
}

func TestProcessPhoto_CapturedImageAlias(t *testing.T) {
	transformer := &stubTransformer{result: &pipeline.Result{ImageURL: "/image/x"}}
	s := newTestServer(t, detector.NewMockDetector(), transformer)

	rec := postJSON(t, s, "/api/process-photo", map[string]string{
		"captured_image": framePayload(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for the captured_image alias, got %d", rec.Code)
	}
	if transformer.lastReq.SourceImage == "" {
		t.Error("captured_image was not forwarded as the source")
	}
}

func TestProcessPhoto_MissingImage(t *testing.T) {
	s := newTestServer(t, detector.NewMockDetector(), &stubTransformer{})

	rec := postJSON(t, s, "/api/process-photo", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// swapForm builds a multipart direct-swap request. Empty fields are omitted.
func swapForm(t *testing.T, name, email string, files []string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if name != "" {
		form.WriteField("name", name)
	}
	if email != "" {
		form.WriteField("email", email)
	}
	for _, field := range files {
		part, err := form.CreateFormFile(field, field+".jpg")
		if err != nil {
			t.Fatalf("failed to build form: %v", err)
		}
		part.Write([]byte("jpeg-bytes"))
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/swap-face/", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req
}

func TestSwapFace_MultipartReturnsImage(t *testing.T) {
	transformer := &stubTransformer{swapped: []byte("swapped-jpeg")}
	s := newTestServer(t, detector.NewMockDetector(), transformer)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, swapForm(t, "Eve", "eve@example.com", []string{"sourceImage", "targetImage"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected a binary image response, got %q", ct)
	}
	if rec.Body.String() != "swapped-jpeg" {
		t.Error("response body is not the swapped image")
	}
	if transformer.swapName != "Eve" || transformer.swapEmail != "eve@example.com" {
		t.Errorf("name and email not forwarded, got %q %q", transformer.swapName, transformer.swapEmail)
	}
}

func TestSwapFace_MissingFile(t *testing.T) {
	s := newTestServer(t, detector.NewMockDetector(), &stubTransformer{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, swapForm(t, "Eve", "eve@example.com", []string{"sourceImage"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing target, got %d", rec.Code)
	}
}

func TestSwapFace_MissingNameOrEmail(t *testing.T) {
	s := newTestServer(t, detector.NewMockDetector(), &stubTransformer{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, swapForm(t, "Eve", "", []string{"sourceImage", "targetImage"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without an email, got %d", rec.Code)
	}

	var body errorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "Name and email are required" {
		t.Errorf("unexpected error message %q", body.Error)
	}
}

func TestSwapFace_NoFaceIsBadRequest(t *testing.T) {
	transformer := &stubTransformer{swapErr: engine.ErrNoFace}
	s := newTestServer(t, detector.NewMockDetector(), transformer)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, swapForm(t, "Eve", "eve@example.com", []string{"sourceImage", "targetImage"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when no face is found, got %d", rec.Code)
	}
}

func TestImage_HitAndMiss(t *testing.T) {
	s := newTestServer(t, detector.NewMockDetector(), &stubTransformer{})

	req := httptest.NewRequest(http.MethodGet, "/image/known", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a cached image, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}

	req = httptest.NewRequest(http.MethodGet, "/image/unknown", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown image, got %d", rec.Code)
	}
}

func TestProcessLinkedIn(t *testing.T) {
	s := newTestServer(t, detector.NewMockDetector(), &stubTransformer{})

	rec := postJSON(t, s, "/api/process-linkedin", map[string]string{
		"image":      framePayload(),
		"background": "light_gray",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != true {
		t.Errorf("unexpected response %v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, detector.NewMockDetector(), &stubTransformer{})

	req := httptest.NewRequest(http.MethodOptions, "/api/process-photo", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("expected the origin to be allowed")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Errorf("expected DELETE in the allowed methods, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("expected Authorization in the allowed headers, got %q", got)
	}
}
