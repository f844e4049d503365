package engine

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// CascadeLocator finds face rectangles with a Haar cascade classifier.
// The classifier is not reentrant, so calls are serialized.
type CascadeLocator struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

func newCascadeLocator(cascadeFile string) (*CascadeLocator, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadeFile) {
		classifier.Close()
		return nil, fmt.Errorf("load face cascade %s", cascadeFile)
	}
	return &CascadeLocator{classifier: classifier}, nil
}

// largest returns the biggest detected face rect in the mat, or false when no
// face is present.
func (l *CascadeLocator) largest(img gocv.Mat) (image.Rectangle, bool) {
	l.mu.Lock()
	rects := l.classifier.DetectMultiScale(img)
	l.mu.Unlock()

	if len(rects) == 0 {
		return image.Rectangle{}, false
	}

	best := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}
	return best, true
}

// Locate decodes an encoded image and returns its largest face rectangle.
// Used by the headshot filter chain for face-aware cropping.
func (l *CascadeLocator) Locate(data []byte) (image.Rectangle, bool, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return image.Rectangle{}, false, fmt.Errorf("decode image: empty frame")
	}

	rect, ok := l.largest(mat)
	return rect, ok, nil
}

// Close releases the cascade classifier.
func (l *CascadeLocator) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.classifier.Close()
}
