// Package opencv converts frames with OpenCV's cvtColor.
package opencv

import (
	"fmt"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"gocv.io/x/gocv"
)

// Converter uses gocv.CvtColor with ColorBGRToHSV.
type Converter struct{}

// New returns an OpenCV-backed converter.
func New() *Converter {
	return &Converter{}
}

// Name returns the converter name
func (c *Converter) Name() string {
	return "opencv"
}

// Convert implements colorspace.Converter.
func (c *Converter) Convert(src *analysis.Frame) (*analysis.Frame, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("colorspace: %w", err)
	}

	bgr, err := gocv.NewMatFromBytes(src.Height, src.Width, gocv.MatTypeCV8UC3, src.Pix)
	if err != nil {
		return nil, fmt.Errorf("colorspace: failed to wrap frame: %w", err)
	}
	defer bgr.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	return analysis.NewFrame(hsv.Cols(), hsv.Rows(), hsv.Channels(), hsv.ToBytes())
}
