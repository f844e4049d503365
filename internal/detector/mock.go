package detector

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hands []HandLandmarks
	err   error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(image []byte) ([]HandLandmarks, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm
// facing the camera: all four fingers pointing up and the thumb spread wide.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.96,
	}

	// Wrist at the bottom center
	landmarks.Points[Wrist] = Point3D{X: 0.50, Y: 0.85, Z: 0.0}

	// Thumb spread to the side (large horizontal tip/base gap)
	landmarks.Points[ThumbCMC] = Point3D{X: 0.44, Y: 0.80, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.38, Y: 0.74, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.31, Y: 0.70, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: 0.25, Y: 0.67, Z: 0.0}

	// Index finger extended upward
	landmarks.Points[IndexMCP] = Point3D{X: 0.44, Y: 0.60, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.44, Y: 0.48, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.44, Y: 0.40, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.44, Y: 0.33, Z: 0.0}

	// Middle finger extended upward
	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.58, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.44, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.36, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	// Ring finger extended upward
	landmarks.Points[RingMCP] = Point3D{X: 0.56, Y: 0.60, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.56, Y: 0.46, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.56, Y: 0.38, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.56, Y: 0.31, Z: 0.0}

	// Pinky extended upward
	landmarks.Points[PinkyMCP] = Point3D{X: 0.62, Y: 0.63, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.62, Y: 0.52, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.62, Y: 0.45, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.62, Y: 0.39, Z: 0.0}

	return landmarks
}

// FistLandmarks returns a preset HandLandmarks representing a closed fist:
// all finger tips curled below their knuckles and the thumb tucked in.
func FistLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.93,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.50, Y: 0.85, Z: 0.0}

	// Thumb tucked against the palm (tip close to base horizontally)
	landmarks.Points[ThumbCMC] = Point3D{X: 0.46, Y: 0.80, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.44, Y: 0.74, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	landmarks.Points[ThumbTip] = Point3D{X: 0.47, Y: 0.68, Z: -0.03}

	// Index finger curled (tip below the knuckle)
	landmarks.Points[IndexMCP] = Point3D{X: 0.44, Y: 0.60, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.44, Y: 0.56, Z: -0.04}
	landmarks.Points[IndexDIP] = Point3D{X: 0.44, Y: 0.62, Z: -0.05}
	landmarks.Points[IndexTip] = Point3D{X: 0.44, Y: 0.67, Z: -0.04}

	// Middle finger curled
	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.58, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.54, Z: -0.04}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.61, Z: -0.05}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.66, Z: -0.04}

	// Ring finger curled
	landmarks.Points[RingMCP] = Point3D{X: 0.56, Y: 0.60, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.56, Y: 0.56, Z: -0.04}
	landmarks.Points[RingDIP] = Point3D{X: 0.56, Y: 0.63, Z: -0.05}
	landmarks.Points[RingTip] = Point3D{X: 0.56, Y: 0.68, Z: -0.04}

	// Pinky curled
	landmarks.Points[PinkyMCP] = Point3D{X: 0.62, Y: 0.63, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.62, Y: 0.60, Z: -0.04}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.62, Y: 0.66, Z: -0.05}
	landmarks.Points[PinkyTip] = Point3D{X: 0.62, Y: 0.70, Z: -0.04}

	return landmarks
}
