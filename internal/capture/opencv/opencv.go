// Package opencv captures frames from a camera through gocv.
package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/capture"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"gocv.io/x/gocv"
)

// Capturer reads BGR frames from a video device. With a zoom factor above
// one each frame is scaled up and the centre cropped back to the source
// size.
type Capturer struct {
	index  int
	zoom   float64
	mu     sync.Mutex
	dev    *gocv.VideoCapture
	frame  gocv.Mat
	zoomed gocv.Mat
}

// New creates a capturer for the device at index
func New(index int, zoom float64) *Capturer {
	return &Capturer{index: index, zoom: zoom}
}

// Start opens the device
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev != nil {
		return fmt.Errorf("capturer already started")
	}

	dev, err := gocv.VideoCaptureDevice(c.index)
	if err != nil {
		return fmt.Errorf("failed to open video device %d: %w", c.index, err)
	}
	if !dev.IsOpened() {
		dev.Close()
		return fmt.Errorf("video device %d did not open", c.index)
	}

	c.dev = dev
	c.frame = gocv.NewMat()
	c.zoomed = gocv.NewMat()

	logger.WithComponent("opencv-capturer").Info().
		Int("device", c.index).
		Int("width", int(dev.Get(gocv.VideoCaptureFrameWidth))).
		Int("height", int(dev.Get(gocv.VideoCaptureFrameHeight))).
		Float64("fps", dev.Get(gocv.VideoCaptureFPS)).
		Float64("zoom", c.zoom).
		Msg("Video device opened")

	return nil
}

// Stop releases the device and frame buffers
func (c *Capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil
	}

	err := c.dev.Close()
	c.frame.Close()
	c.zoomed.Close()
	c.dev = nil
	return err
}

// Acquire reads one frame. An empty read is reported as
// capture.ErrFrameUnavailable.
func (c *Capturer) Acquire(ctx context.Context) (*analysis.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil, capture.ErrNotStarted
	}

	if ok := c.dev.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, capture.ErrFrameUnavailable
	}

	src := c.frame
	if c.zoom > 1 {
		cropped, err := c.zoomCentre()
		if err != nil {
			return nil, err
		}
		defer cropped.Close()
		src = cropped
	}

	if src.Channels() != 3 {
		return nil, fmt.Errorf("%w: device delivered %d channels", analysis.ErrInvalidFrame, src.Channels())
	}

	return analysis.NewFrame(src.Cols(), src.Rows(), src.Channels(), src.ToBytes())
}

// zoomCentre scales the current frame by the zoom factor and returns a
// continuous copy of its centre at the original size.
func (c *Capturer) zoomCentre() (gocv.Mat, error) {
	w, h := c.frame.Cols(), c.frame.Rows()

	gocv.Resize(c.frame, &c.zoomed, image.Point{}, c.zoom, c.zoom, gocv.InterpolationLinear)
	if c.zoomed.Empty() {
		return gocv.Mat{}, capture.ErrFrameUnavailable
	}

	rect := centreRect(c.zoomed.Cols(), c.zoomed.Rows(), w, h)
	region := c.zoomed.Region(rect)
	defer region.Close()

	return region.Clone(), nil
}

// centreRect returns a w×h rectangle centred in an outerW×outerH image
func centreRect(outerW, outerH, w, h int) image.Rectangle {
	if w > outerW {
		w = outerW
	}
	if h > outerH {
		h = outerH
	}
	x0 := (outerW - w) / 2
	y0 := (outerH - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}

// Name returns the capturer name
func (c *Capturer) Name() string {
	return capture.BackendOpenCV
}

// IsAvailable reports true; device presence is checked by Start
func (c *Capturer) IsAvailable() bool {
	return true
}
