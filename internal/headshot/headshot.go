// Package headshot turns kiosk photos into square profile portraits. The
// chain crops around the detected face, applies a mild contrast lift, and
// composites the result onto a studio background.
package headshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

const (
	// OutputSize is the edge length of the final square portrait.
	OutputSize  = 800
	jpegQuality = 95

	// Padding fractions around the detected face rect, as a multiple of
	// the rect's own dimensions.
	padTop    = 0.40
	padSide   = 0.20
	padBottom = 0.30
)

// Backgrounds selectable by the client. Unknown names fall back to white.
const (
	BackgroundWhite     = "white"
	BackgroundLightGray = "light_gray"
	BackgroundBlue      = "blue"
	BackgroundGradient  = "gradient"
)

// FaceLocator finds the main face in an encoded image.
type FaceLocator interface {
	Locate(data []byte) (image.Rectangle, bool, error)
}

// Processor runs the portrait chain.
type Processor struct {
	faces FaceLocator
}

// New creates a Processor. A nil locator disables face-aware cropping and
// every photo gets the center-crop fallback.
func New(faces FaceLocator) *Processor {
	return &Processor{faces: faces}
}

// Process produces an 800x800 JPEG portrait from the input photo.
func (p *Processor) Process(photo []byte, background string) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	crop := p.cropRect(photo, src.Bounds())
	portrait := scaleCrop(src, crop)
	enhance(portrait)

	canvas := image.NewRGBA(image.Rect(0, 0, OutputSize, OutputSize))
	fillBackground(canvas, background)
	xdraw.Draw(canvas, portrait.Bounds(), portrait, portrait.Bounds().Min, xdraw.Over)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode portrait: %w", err)
	}
	return out.Bytes(), nil
}

// cropRect picks the crop window: padded around the face when one is found,
// otherwise the largest centered square.
func (p *Processor) cropRect(photo []byte, bounds image.Rectangle) image.Rectangle {
	if p.faces != nil {
		if face, ok, err := p.faces.Locate(photo); err == nil && ok {
			return clamp(pad(face), bounds)
		}
	}
	return centerSquare(bounds)
}

func pad(face image.Rectangle) image.Rectangle {
	w, h := face.Dx(), face.Dy()
	return image.Rect(
		face.Min.X-int(float64(w)*padSide),
		face.Min.Y-int(float64(h)*padTop),
		face.Max.X+int(float64(w)*padSide),
		face.Max.Y+int(float64(h)*padBottom),
	)
}

func clamp(r, bounds image.Rectangle) image.Rectangle {
	out := r.Intersect(bounds)
	if out.Empty() {
		return centerSquare(bounds)
	}
	return out
}

func centerSquare(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	edge := w
	if h < edge {
		edge = h
	}
	x := bounds.Min.X + (w-edge)/2
	y := bounds.Min.Y + (h-edge)/2
	return image.Rect(x, y, x+edge, y+edge)
}

// scaleCrop resamples the crop window into the output square.
func scaleCrop(src image.Image, crop image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, OutputSize, OutputSize))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)
	return dst
}

// enhance applies a small contrast lift around mid-gray. Portraits from the
// kiosk camera come out flat under the booth lighting.
func enhance(img *image.RGBA) {
	const factor = 1.08
	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(pix[i+c])
			v = (v-128)*factor + 128
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			pix[i+c] = uint8(v)
		}
	}
}

func fillBackground(canvas *image.RGBA, name string) {
	switch name {
	case BackgroundGradient:
		fillGradient(canvas)
		return
	case BackgroundLightGray:
		fillSolid(canvas, color.RGBA{R: 0xE8, G: 0xE8, B: 0xE8, A: 0xFF})
	case BackgroundBlue:
		fillSolid(canvas, color.RGBA{R: 0x0A, G: 0x66, B: 0xC2, A: 0xFF})
	default:
		fillSolid(canvas, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})
	}
}

func fillSolid(canvas *image.RGBA, c color.RGBA) {
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
}

// fillGradient paints a vertical white-to-gray wash.
func fillGradient(canvas *image.RGBA) {
	bounds := canvas.Bounds()
	height := bounds.Dy()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		t := float64(y-bounds.Min.Y) / float64(height)
		v := uint8(255 - t*60)
		row := image.Rect(bounds.Min.X, y, bounds.Max.X, y+1)
		xdraw.Draw(canvas, row, image.NewUniform(color.RGBA{R: v, G: v, B: v, A: 0xFF}), image.Point{}, xdraw.Src)
	}
}
