// Package gstreamer captures camera frames through GStreamer, either with
// an in-process appsink pipeline or a gst-launch-1.0 subprocess.
package gstreamer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/capture"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// pullTimeout bounds how long Acquire waits on the appsink
const pullTimeout = 50 * time.Millisecond

// Options selects the device and optional fixed caps
type Options struct {
	DeviceIndex int
	Width       int
	Height      int
}

// DevicePath returns the v4l2 device node for the configured index
func (o Options) DevicePath() string {
	return fmt.Sprintf("/dev/video%d", o.DeviceIndex)
}

// Description builds the launch description ending in sink
func (o Options) Description(sink string) string {
	caps := "video/x-raw,format=BGR"
	if o.Width > 0 && o.Height > 0 {
		caps += fmt.Sprintf(",width=%d,height=%d", o.Width, o.Height)
	}

	parts := []string{
		fmt.Sprintf("v4l2src device=%s", o.DevicePath()),
		"videoconvert",
	}
	if o.Width > 0 && o.Height > 0 {
		parts = append(parts, "videoscale")
	}
	parts = append(parts, caps, sink)
	return strings.Join(parts, " ! ")
}

// Pipeline captures through an appsink. Samples are pulled on demand from
// Acquire instead of through signal callbacks.
type Pipeline struct {
	opts     Options
	pipeline *gst.Pipeline
	appsink  *app.Sink
	mu       sync.Mutex
	running  bool
}

// NewPipeline creates a new in-process GStreamer capturer
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Start initializes and starts the GStreamer pipeline
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pipeline already running")
	}

	log := logger.WithComponent("gstreamer")

	gst.Init(nil)

	desc := p.opts.Description("appsink name=sink emit-signals=false max-buffers=2 drop=true")
	log.Debug().Str("pipeline", desc).Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to get appsink: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	p.pipeline = pipeline
	p.appsink = app.SinkFromElement(sinkElement)
	p.running = true

	log.Info().Str("device", p.opts.DevicePath()).Msg("GStreamer pipeline started")
	return nil
}

// Stop stops the GStreamer pipeline
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	p.running = false
	p.appsink = nil
	if p.pipeline != nil {
		p.pipeline.SetState(gst.StateNull)
		p.pipeline.Unref()
		p.pipeline = nil
	}

	logger.WithComponent("gstreamer").Info().Msg("GStreamer pipeline stopped")
	return nil
}

// Acquire pulls one sample, waiting at most pullTimeout
func (p *Pipeline) Acquire(ctx context.Context) (*analysis.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	sink := p.appsink
	running := p.running
	p.mu.Unlock()

	if !running || sink == nil {
		return nil, capture.ErrNotStarted
	}

	// go-gst releases the sample itself; an explicit Unref double-frees.
	sample := sink.TryPullSample(pullTimeout)
	if sample == nil {
		return nil, capture.ErrFrameUnavailable
	}

	return frameFromSample(sample)
}

// frameFromSample reads the caps size and copies the mapped buffer
func frameFromSample(sample *gst.Sample) (*analysis.Frame, error) {
	buffer := sample.GetBuffer()
	caps := sample.GetCaps()
	if buffer == nil || caps == nil {
		return nil, capture.ErrFrameUnavailable
	}

	structure := caps.GetStructureAt(0)
	if structure == nil {
		return nil, capture.ErrFrameUnavailable
	}

	width, _ := structure.GetValue("width")
	height, _ := structure.GetValue("height")
	w, ok := width.(int)
	if !ok {
		return nil, capture.ErrFrameUnavailable
	}
	h, ok := height.(int)
	if !ok {
		return nil, capture.ErrFrameUnavailable
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, capture.ErrFrameUnavailable
	}
	defer buffer.Unmap()

	pix, err := packRows(mapInfo.Bytes(), w, h)
	if err != nil {
		return nil, err
	}
	return analysis.NewFrame(w, h, 3, pix)
}

// Stride returns the GStreamer row stride for packed 24-bit video, which
// is padded to a multiple of four bytes.
func Stride(width int) int {
	return (width*3 + 3) &^ 3
}

// packRows removes row padding from a raw BGR buffer
func packRows(data []byte, width, height int) ([]byte, error) {
	row := width * 3
	stride := Stride(width)
	if len(data) == row*height {
		stride = row
	}
	if len(data) < stride*(height-1)+row {
		return nil, fmt.Errorf("%w: buffer of %d bytes too small for %dx%d",
			capture.ErrFrameUnavailable, len(data), width, height)
	}

	pix := make([]byte, row*height)
	for y := 0; y < height; y++ {
		copy(pix[y*row:(y+1)*row], data[y*stride:y*stride+row])
	}
	return pix, nil
}

// Name returns the capturer name
func (p *Pipeline) Name() string {
	return capture.BackendGStreamer
}

// IsAvailable checks that the v4l2 device node exists
func (p *Pipeline) IsAvailable() bool {
	_, err := os.Stat(p.opts.DevicePath())
	return err == nil
}
