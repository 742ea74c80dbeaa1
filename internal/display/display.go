// Package display shows captured frames: an OpenCV HighGUI window, a
// plain X11 window, or an MJPEG stream with the control overlay.
package display

import (
	"image"
	"image/color"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"golang.org/x/image/draw"
)

// Backend names accepted in configuration.
const (
	BackendOpenCV = "opencv"
	BackendX11    = "x11"
	BackendNone   = "none"
)

// WindowTitle is the title of the preview window
const WindowTitle = "CAMERAMIDI"

// Sink shows frames somewhere. Show must return quickly; a slow sink
// delays control output.
type Sink interface {
	Start() error
	Stop() error
	Show(frame *analysis.Frame) error
	Name() string
}

// ToRGBA converts a BGR frame to an opaque RGBA image
func ToRGBA(f *analysis.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i+2]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i]
		img.Pix[j+3] = 255
	}
	return img
}

// Fit scales src into a width×height canvas, keeping its aspect ratio and
// centring it on black.
func Fit(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	sb := src.Bounds()
	if sb.Empty() || width <= 0 || height <= 0 {
		return dst
	}

	scale := float64(width) / float64(sb.Dx())
	if s := float64(height) / float64(sb.Dy()); s < scale {
		scale = s
	}
	w := int(float64(sb.Dx()) * scale)
	h := int(float64(sb.Dy()) * scale)
	x0 := (width - w) / 2
	y0 := (height - h) / 2

	draw.ApproxBiLinear.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), src, sb, draw.Src, nil)
	return dst
}
