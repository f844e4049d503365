package engine

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortInitialized bool
	ortMu          sync.Mutex
)

// initRuntime sets up the shared ONNX Runtime environment. Safe to call from
// multiple engine constructors; only the first call does work.
func initRuntime(libraryPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortInitialized {
		return nil
	}

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}

	ortInitialized = true
	return nil
}

// session wraps one ONNX inference session.
type session struct {
	sess        *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
}

func newSession(modelPath string, inputNames, outputNames []string) (*session, error) {
	if !ortInitialized {
		return nil, fmt.Errorf("onnxruntime not initialized")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	return &session{
		sess:        sess,
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

func (s *session) run(inputs, outputs []ort.Value) error {
	if err := s.sess.Run(inputs, outputs); err != nil {
		return fmt.Errorf("inference %s: %w", s.modelPath, err)
	}
	return nil
}

func (s *session) close() {
	if s.sess != nil {
		s.sess.Destroy()
		s.sess = nil
	}
}

// bytesToFloat32 reinterprets a little-endian byte buffer as float32 values.
func bytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
