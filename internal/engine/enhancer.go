package engine

import (
	"context"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

const enhanceInputSize = 512

// onnxEnhancer restores facial detail with a GFPGAN-style model.
type onnxEnhancer struct {
	sess *session
}

func newONNXEnhancer(modelPath string) (*onnxEnhancer, error) {
	sess, err := newSession(modelPath, []string{"input"}, []string{"output"})
	if err != nil {
		return nil, err
	}
	return &onnxEnhancer{sess: sess}, nil
}

// Enhance runs the restoration model over the full frame and returns the
// result at the original resolution.
func (e *onnxEnhancer) Enhance(ctx context.Context, img []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		return nil, fmt.Errorf("decode image: %v", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(enhanceInputSize, enhanceInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, enhanceInputSize, enhanceInputSize),
		bytesToFloat32(blob.ToBytes()),
	)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, enhanceInputSize, enhanceInputSize))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := e.sess.run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, err
	}

	restored, err := chwToMat(outputTensor.GetData(), enhanceInputSize, enhanceInputSize)
	if err != nil {
		return nil, err
	}
	defer restored.Close()

	// Back to the input resolution.
	final := gocv.NewMat()
	defer final.Close()
	gocv.Resize(restored, &final, image.Pt(mat.Cols(), mat.Rows()), 0, 0, gocv.InterpolationCubic)

	buf, err := gocv.IMEncode(".jpg", final)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func (e *onnxEnhancer) close() {
	e.sess.close()
}
