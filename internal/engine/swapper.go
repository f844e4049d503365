package engine

import (
	"context"
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

const (
	encoderInputSize = 112
	swapInputSize    = 128
	embeddingSize    = 512
)

// onnxSwapper swaps the source identity onto the target image using an
// identity encoder and an inswapper-style generator.
type onnxSwapper struct {
	encoder *session
	swapGen *session
	faces   *CascadeLocator
}

func newONNXSwapper(cfg Config, faces *CascadeLocator) (*onnxSwapper, error) {
	encoder, err := newSession(cfg.EncoderModel, []string{"input"}, []string{"output"})
	if err != nil {
		return nil, err
	}

	// The generator takes the aligned target face plus the source embedding.
	swapGen, err := newSession(cfg.SwapModel, []string{"target", "source"}, []string{"output"})
	if err != nil {
		encoder.close()
		return nil, err
	}

	return &onnxSwapper{encoder: encoder, swapGen: swapGen, faces: faces}, nil
}

// Swap locates the largest face in both images, extracts the source identity
// embedding, generates the swapped face, and pastes it back into the target
// frame. Returns ErrNoFace when either image has no detectable face.
func (s *onnxSwapper) Swap(ctx context.Context, source, target []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcMat, err := gocv.IMDecode(source, gocv.IMReadColor)
	if err != nil || srcMat.Empty() {
		return nil, fmt.Errorf("decode source image: %v", err)
	}
	defer srcMat.Close()

	tgtMat, err := gocv.IMDecode(target, gocv.IMReadColor)
	if err != nil || tgtMat.Empty() {
		return nil, fmt.Errorf("decode target image: %v", err)
	}
	defer tgtMat.Close()

	srcRect, ok := s.faces.largest(srcMat)
	if !ok {
		return nil, ErrNoFace
	}
	tgtRect, ok := s.faces.largest(tgtMat)
	if !ok {
		return nil, ErrNoFace
	}

	embedding, err := s.embed(srcMat, srcRect)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	swapped, err := s.generate(tgtMat, tgtRect, embedding)
	if err != nil {
		return nil, err
	}
	defer swapped.Close()

	// Paste the generated face back over the target face rect.
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(swapped, &resized, image.Pt(tgtRect.Dx(), tgtRect.Dy()), 0, 0, gocv.InterpolationLinear)

	region := tgtMat.Region(tgtRect)
	defer region.Close()
	resized.CopyTo(&region)

	buf, err := gocv.IMEncode(".jpg", tgtMat)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// embed runs the identity encoder on the aligned source face and returns the
// L2-normalized 512-d embedding.
func (s *onnxSwapper) embed(img gocv.Mat, face image.Rectangle) ([]float32, error) {
	crop := img.Region(face)
	defer crop.Close()

	// ArcFace preprocessing: RGB, (pixel - 127.5) / 127.5.
	blob := gocv.BlobFromImage(crop, 1.0/127.5, image.Pt(encoderInputSize, encoderInputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, encoderInputSize, encoderInputSize),
		bytesToFloat32(blob.ToBytes()),
	)
	if err != nil {
		return nil, fmt.Errorf("create encoder input: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, embeddingSize))
	if err != nil {
		return nil, fmt.Errorf("create encoder output: %w", err)
	}
	defer outputTensor.Destroy()

	if err := s.encoder.run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, err
	}

	embedding := make([]float32, embeddingSize)
	copy(embedding, outputTensor.GetData())
	normalize(embedding)
	return embedding, nil
}

// generate runs the swap generator on the aligned target face.
func (s *onnxSwapper) generate(img gocv.Mat, face image.Rectangle, embedding []float32) (gocv.Mat, error) {
	crop := img.Region(face)
	defer crop.Close()

	blob := gocv.BlobFromImage(crop, 1.0/255.0, image.Pt(swapInputSize, swapInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	targetTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, swapInputSize, swapInputSize),
		bytesToFloat32(blob.ToBytes()),
	)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("create target tensor: %w", err)
	}
	defer targetTensor.Destroy()

	sourceTensor, err := ort.NewTensor(ort.NewShape(1, embeddingSize), embedding)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("create source tensor: %w", err)
	}
	defer sourceTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, swapInputSize, swapInputSize))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := s.swapGen.run([]ort.Value{targetTensor, sourceTensor}, []ort.Value{outputTensor}); err != nil {
		return gocv.NewMat(), err
	}

	return chwToMat(outputTensor.GetData(), swapInputSize, swapInputSize)
}

func (s *onnxSwapper) close() {
	s.encoder.close()
	s.swapGen.close()
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}

// chwToMat converts CHW RGB float output in [0,1] to a BGR 8-bit Mat.
func chwToMat(data []float32, width, height int) (gocv.Mat, error) {
	plane := width * height
	if len(data) < 3*plane {
		return gocv.NewMat(), fmt.Errorf("short model output: %d values", len(data))
	}

	pixels := make([]byte, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			r := clampByte(data[i])
			g := clampByte(data[plane+i])
			b := clampByte(data[2*plane+i])
			pixels[i*3+0] = b
			pixels[i*3+1] = g
			pixels[i*3+2] = r
		}
	}

	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pixels)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("build output mat: %w", err)
	}
	return mat, nil
}

func clampByte(v float32) byte {
	scaled := v * 255.0
	if scaled < 0 {
		return 0
	}
	if scaled > 255 {
		return 255
	}
	return byte(scaled)
}
