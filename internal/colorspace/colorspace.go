// Package colorspace converts BGR frames into HSV frames.
//
// HSV output follows the OpenCV 8-bit convention: hue 0-179, saturation and
// value 0-255.
package colorspace

import (
	"fmt"
	"math"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
)

// Converter maps a BGR frame to an HSV frame of the same dimensions.
type Converter interface {
	Convert(src *analysis.Frame) (*analysis.Frame, error)
	Name() string
}

// Converter names accepted in configuration.
const (
	ConverterOpenCV    = "opencv"
	ConverterReference = "reference"
)

const hsvShift = 12

var (
	sdivTable [256]int
	hdivTable [256]int
)

func init() {
	for i := 1; i < 256; i++ {
		sdivTable[i] = int(math.RoundToEven(float64(255<<hsvShift) / float64(i)))
		hdivTable[i] = int(math.RoundToEven(float64(180<<hsvShift) / (6 * float64(i))))
	}
}

// Reference is a pure Go BGR to HSV converter using the same fixed-point
// tables as OpenCV's 8-bit cvtColor, so both produce identical bytes.
type Reference struct{}

// Name returns the converter name
func (Reference) Name() string {
	return ConverterReference
}

// Convert implements Converter.
func (Reference) Convert(src *analysis.Frame) (*analysis.Frame, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("colorspace: %w", err)
	}

	dst := make([]byte, len(src.Pix))
	for i := 0; i < len(src.Pix); i += 3 {
		h, s, v := PixelToHSV(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		dst[i], dst[i+1], dst[i+2] = h, s, v
	}
	return &analysis.Frame{Width: src.Width, Height: src.Height, Channels: 3, Pix: dst}, nil
}

// PixelToHSV converts one BGR pixel.
func PixelToHSV(b8, g8, r8 uint8) (h8, s8, v8 uint8) {
	b, g, r := int(b8), int(g8), int(r8)

	v := max(b, g, r)
	vmin := min(b, g, r)
	diff := v - vmin

	vr, vg := 0, 0
	if v == r {
		vr = -1
	}
	if v == g {
		vg = -1
	}

	s := (diff*sdivTable[v] + (1 << (hsvShift - 1))) >> hsvShift
	h := (vr & (g - b)) + (^vr & ((vg & (b - r + 2*diff)) + (^vg & (r - g + 4*diff))))
	h = (h*hdivTable[diff] + (1 << (hsvShift - 1))) >> hsvShift
	if h < 0 {
		h += 180
	}
	if h > 179 {
		h = 179
	}
	return uint8(h), uint8(s), uint8(v)
}
