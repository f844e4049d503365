// Package engine hosts the face-swap and face-restoration model engines.
// The heavyweight ONNX sessions are constructed lazily, at most once, on
// first use.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNoFace is returned by a swap when no face was found in the source or
// target image. Callers treat it as a skip signal, not a failure.
var ErrNoFace = errors.New("no face detected")

// FaceSwapper composites the identity of the source face onto the target
// image.
type FaceSwapper interface {
	// Swap returns the composited image bytes, or ErrNoFace when either
	// image yields no detectable face.
	Swap(ctx context.Context, source, target []byte) ([]byte, error)
}

// Enhancer sharpens and restores a face image.
type Enhancer interface {
	Enhance(ctx context.Context, img []byte) ([]byte, error)
}

// Config locates the model files the engines are built from.
type Config struct {
	// OnnxLibrary is the path to the onnxruntime shared library.
	OnnxLibrary string
	// EncoderModel extracts the 512-d identity embedding.
	EncoderModel string
	// SwapModel is the inswapper-style generator.
	SwapModel string
	// EnhanceModel is the GFPGAN-style restorer; empty disables enhancement.
	EnhanceModel string
	// FaceCascade is the Haar cascade file used for face location.
	FaceCascade string
}

// Engines bundles the constructed model engines.
type Engines struct {
	Swapper  FaceSwapper
	Enhancer Enhancer // nil when no enhancement model is configured
	Faces    *CascadeLocator

	closers []func()
}

// Close releases the underlying sessions.
func (e *Engines) Close() {
	for _, fn := range e.closers {
		fn()
	}
}

// Provider constructs the engines on first use. Construction happens at most
// once even when concurrent requests race to be first: later callers block on
// the mutex and observe the already-built engines. A failed construction is
// reported to every waiting caller and retried on the next use.
type Provider struct {
	cfg Config

	mu      sync.Mutex
	engines *Engines

	// build is swapped out in tests.
	build func(Config) (*Engines, error)
}

// NewProvider creates a Provider; no model is loaded until Get is called.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg, build: buildEngines}
}

// Get returns the engines, constructing them on the first call.
func (p *Provider) Get(ctx context.Context) (*Engines, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engines != nil {
		return p.engines, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info().Msg("initializing face swap engines on first use")
	engines, err := p.build(p.cfg)
	if err != nil {
		return nil, err
	}
	p.engines = engines
	return p.engines, nil
}

// Close releases the engines if they were ever constructed.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engines != nil {
		p.engines.Close()
		p.engines = nil
	}
}

func buildEngines(cfg Config) (*Engines, error) {
	if err := initRuntime(cfg.OnnxLibrary); err != nil {
		return nil, err
	}

	faces, err := newCascadeLocator(cfg.FaceCascade)
	if err != nil {
		return nil, err
	}

	swapper, err := newONNXSwapper(cfg, faces)
	if err != nil {
		faces.Close()
		return nil, err
	}

	engines := &Engines{
		Swapper: swapper,
		Faces:   faces,
		closers: []func(){faces.Close, swapper.close},
	}

	if cfg.EnhanceModel != "" {
		enhancer, err := newONNXEnhancer(cfg.EnhanceModel)
		if err != nil {
			engines.Close()
			return nil, err
		}
		engines.Enhancer = enhancer
		engines.closers = append(engines.closers, enhancer.close)
	}

	return engines, nil
}
