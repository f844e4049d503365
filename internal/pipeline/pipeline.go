// Package pipeline orchestrates one photo transformation end to end: decode,
// archive the original, resolve a target character, swap faces, optionally
// enhance, persist, and record. Durable collaborators are allowed to fail;
// the pipeline degrades to local persistence instead of failing the guest.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/engine"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/metrics"
)

var (
	// ErrInvalidImage means the request payload could not be decoded.
	ErrInvalidImage = errors.New("invalid image data")
	// ErrEnhancement means the restoration pass failed. Enhancement is
	// fatal when enabled; a half-restored face looks worse than none.
	ErrEnhancement = errors.New("enhancement failed")
)

// Kind labels the transformation recorded in the ledgers.
type Kind string

const (
	KindAITransformation Kind = "AI Transformation"
	KindHeadshot         Kind = "LinkedIn Headshot"
)

// ParseKind normalizes client-supplied kind strings. Both the spaced and the
// compact spellings are in the wild across kiosk frontend versions.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSpace(s) {
	case "", "AI Transformation", "AITransformation":
		return KindAITransformation, nil
	case "LinkedIn Headshot", "LinkedInHeadshot":
		return KindHeadshot, nil
	default:
		return "", fmt.Errorf("unknown transformation type %q", s)
	}
}

// Request carries one transformation job. SourceImage is base64, with or
// without a data URI prefix. TargetImage, when set, bypasses the catalog.
type Request struct {
	SourceImage string
	TargetImage string
	Kind        string
	Gender      string
	Name        string
	Email       string
}

// Result is what the handler returns to the kiosk frontend.
type Result struct {
	// ImageURL points at the transformed image: a public object URL, or a
	// local /image/{id} path when durable storage is down.
	ImageURL string
	// OriginalURL points at the archived original, empty when the upload
	// was skipped or failed.
	OriginalURL string
	Kind        Kind
	// Local is true when ImageURL is served from the in-memory cache.
	Local bool
}

// Storage is the durable side: object uploads plus the transformation ledger.
type Storage interface {
	Available() bool
	UploadBytes(ctx context.Context, folder string, data []byte) (string, error)
	SaveTransformationRecord(ctx context.Context, userName, userEmail, originalURL, transformedURL, transformationType string) error
}

// CharacterSource resolves a themed target character for a gender.
type CharacterSource interface {
	Resolve(ctx context.Context, gender string) ([]byte, error)
}

// EngineSource hands out the lazily built inference engines.
type EngineSource interface {
	Get(ctx context.Context) (*engine.Engines, error)
}

// SwapRecorder is the local append-only swap ledger.
type SwapRecorder interface {
	Insert(userName, userEmail, imageName string) error
}

// ResultRegistry keeps transformed bytes servable when storage is down.
type ResultRegistry interface {
	Put(data []byte) string
}

// Processor runs transformations. All collaborators except engines may be
// nil-equivalent or degraded; Process adapts per call.
type Processor struct {
	storage    Storage
	characters CharacterSource
	engines    EngineSource
	swaps      SwapRecorder
	results    ResultRegistry
	dataDir    string
	enhance    bool
}

// New creates a Processor.
func New(st Storage, ch CharacterSource, eng EngineSource, swaps SwapRecorder, results ResultRegistry, dataDir string, enhance bool) *Processor {
	return &Processor{
		storage:    st,
		characters: ch,
		engines:    eng,
		swaps:      swaps,
		results:    results,
		dataDir:    dataDir,
		enhance:    enhance,
	}
}

// Process runs the full transformation for one guest photo.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := p.process(ctx, req)
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	if result.Local {
		metrics.PipelineRuns.WithLabelValues("local").Inc()
	} else {
		metrics.PipelineRuns.WithLabelValues("ok").Inc()
	}
	return result, nil
}

func (p *Processor) process(ctx context.Context, req Request) (*Result, error) {
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	source, err := DecodeImage(req.SourceImage)
	if err != nil {
		return nil, err
	}

	originalURL := p.archiveOriginal(ctx, source)

	output, err := p.transform(ctx, req, kind, source)
	if err != nil {
		return nil, err
	}

	imageURL, imageName, local := p.persistOutput(ctx, output)

	p.record(ctx, req, kind, originalURL, imageURL, imageName, local)

	return &Result{
		ImageURL:    imageURL,
		OriginalURL: originalURL,
		Kind:        kind,
		Local:       local,
	}, nil
}

// transform runs the swap and optional enhancement. Every failure short of a
// broken enhancer degrades to handing the guest their own photo back; a
// missing character, missing face, or unloadable model never fails the
// request.
func (p *Processor) transform(ctx context.Context, req Request, kind Kind, source []byte) ([]byte, error) {
	// A supplied target always triggers a swap; otherwise only the AI
	// transformation kind consults the catalog.
	if req.TargetImage == "" && kind != KindAITransformation {
		return source, nil
	}

	target, err := p.resolveTarget(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("no target character, keeping the original photo")
		metrics.PipelineSteps.WithLabelValues("resolve_target").Inc()
		return source, nil
	}

	engines, err := p.engines.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("engines unavailable, keeping the original photo")
		metrics.PipelineSteps.WithLabelValues("engines").Inc()
		return source, nil
	}

	output, err := engines.Swapper.Swap(ctx, source, target)
	if errors.Is(err, engine.ErrNoFace) {
		log.Warn().Msg("no face detected, keeping the original photo")
		metrics.PipelineSteps.WithLabelValues("swap").Inc()
		return source, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("face swap failed, keeping the original photo")
		metrics.PipelineSteps.WithLabelValues("swap").Inc()
		return source, nil
	}

	if p.enhance && engines.Enhancer != nil {
		enhanced, err := engines.Enhancer.Enhance(ctx, output)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEnhancement, err)
		}
		output = enhanced
	}

	return output, nil
}

// SwapDirect swaps between two explicit images without catalog resolution.
// The composited image goes back to the caller, but the swap still lands in
// both ledgers, with a durable record only when the upload succeeded.
func (p *Processor) SwapDirect(ctx context.Context, source, target []byte, name, email string) ([]byte, error) {
	engines, err := p.engines.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("engines unavailable: %w", err)
	}
	out, err := engines.Swapper.Swap(ctx, source, target)
	if err != nil {
		return nil, fmt.Errorf("face swap: %w", err)
	}

	imageName, err := p.saveLocal("outputs", out)
	if err != nil {
		log.Warn().Err(err).Msg("local output save failed")
		imageName = "direct_swap.jpg"
	}

	if p.storage.Available() {
		if url, err := p.storage.UploadBytes(ctx, "outputs", out); err != nil {
			log.Warn().Err(err).Msg("output upload failed")
			metrics.PipelineSteps.WithLabelValues("upload_output").Inc()
		} else if err := p.storage.SaveTransformationRecord(ctx, name, email, "", url, string(KindAITransformation)); err != nil {
			log.Warn().Err(err).Msg("durable ledger write failed")
			metrics.PipelineSteps.WithLabelValues("ledger").Inc()
		}
	}

	if err := p.swaps.Insert(name, email, imageName); err != nil {
		log.Error().Err(err).Msg("local swap ledger write failed")
	}
	return out, nil
}

// archiveOriginal uploads the untouched photo and keeps a scratch copy on
// disk. Both halves are best effort.
func (p *Processor) archiveOriginal(ctx context.Context, source []byte) string {
	var originalURL string
	if p.storage.Available() {
		url, err := p.storage.UploadBytes(ctx, "originals", source)
		if err != nil {
			log.Warn().Err(err).Msg("original upload failed, continuing without archive URL")
			metrics.PipelineSteps.WithLabelValues("upload_original").Inc()
		} else {
			originalURL = url
		}
	}

	if name, err := p.saveLocal("originals", source); err != nil {
		log.Warn().Err(err).Msg("local original save failed")
	} else {
		log.Debug().Str("file", name).Msg("original archived locally")
	}

	return originalURL
}

// resolveTarget picks the target character: the explicit one from the
// request, else a random themed character from the catalog.
func (p *Processor) resolveTarget(ctx context.Context, req Request) ([]byte, error) {
	if req.TargetImage != "" {
		target, err := DecodeImage(req.TargetImage)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		return target, nil
	}

	target, err := p.characters.Resolve(ctx, req.Gender)
	if err != nil {
		return nil, fmt.Errorf("resolve character: %w", err)
	}
	return target, nil
}

// persistOutput stores the transformed image durably, or falls back to the
// local result cache when object storage is down or the upload fails.
func (p *Processor) persistOutput(ctx context.Context, output []byte) (imageURL, imageName string, local bool) {
	if p.storage.Available() {
		url, err := p.storage.UploadBytes(ctx, "outputs", output)
		if err == nil {
			name, err := p.saveLocal("outputs", output)
			if err != nil {
				log.Warn().Err(err).Msg("local output save failed")
			}
			return url, name, false
		}
		log.Warn().Err(err).Msg("output upload failed, serving locally")
		metrics.PipelineSteps.WithLabelValues("upload_output").Inc()
	}

	name, err := p.saveLocal("outputs", output)
	if err != nil {
		log.Warn().Err(err).Msg("local output save failed")
	}

	id := p.results.Put(output)
	return "/image/" + id, name, true
}

// record appends the transformation to both ledgers. Failures are logged,
// never surfaced; the guest already has their image. The durable record is
// written only for durably stored results; a /image/{token} URL expires with
// the cache and must not land in the ledger.
func (p *Processor) record(ctx context.Context, req Request, kind Kind, originalURL, imageURL, imageName string, local bool) {
	if local {
		log.Debug().Msg("result served locally, skipping the durable record")
	} else if err := p.storage.SaveTransformationRecord(ctx, req.Name, req.Email, originalURL, imageURL, string(kind)); err != nil {
		log.Warn().Err(err).Msg("durable ledger write failed")
		metrics.PipelineSteps.WithLabelValues("ledger").Inc()
	}

	if imageName == "" {
		imageName = imageURL
	}
	if err := p.swaps.Insert(req.Name, req.Email, imageName); err != nil {
		log.Error().Err(err).Msg("local swap ledger write failed")
	}
}

// saveLocal writes the image under dataDir/{folder} and returns the relative
// file name.
func (p *Processor) saveLocal(folder string, data []byte) (string, error) {
	dir := filepath.Join(p.dataDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s.jpg", time.Now().Format("20060102_150405"), uuid.New().String()[:8])
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return filepath.Join(folder, name), nil
}

// DecodeImage decodes a base64 payload, tolerating a data URI prefix.
func DecodeImage(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrInvalidImage
	}

	if i := strings.Index(payload, ","); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	return data, nil
}
