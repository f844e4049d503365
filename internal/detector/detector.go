package detector

// Detector is the interface to the hand landmark model. Implementations are
// stateless per call: one image in, zero or more hands out.
type Detector interface {
	// Detect analyzes an encoded image (JPEG or PNG bytes) and returns the
	// landmarks of any detected hands. An empty slice means no hand was found.
	Detect(image []byte) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config matching the kiosk deployment: a single
// hand with the MediaPipe default confidence thresholds.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
