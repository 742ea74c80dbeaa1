package capture

import (
	"context"
	"errors"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
)

var (
	// ErrFrameUnavailable reports that no frame was ready this tick. It is
	// transient: callers skip the tick and try again.
	ErrFrameUnavailable = errors.New("frame unavailable")

	// ErrNotStarted is returned by Acquire before Start succeeded.
	ErrNotStarted = errors.New("capturer not started")

	// ErrNoBackend is returned when no configured backend could be started.
	ErrNoBackend = errors.New("no capture backends available")
)

// Capturer defines the interface for video capture backends
type Capturer interface {
	// Start opens the device and any required resources
	Start() error

	// Stop releases resources and stops any background processes
	Stop() error

	// Acquire returns the next BGR frame, or ErrFrameUnavailable when the
	// device has nothing for this tick. It may block until a frame is ready
	// but must return promptly when no frame will arrive.
	Acquire(ctx context.Context) (*analysis.Frame, error)

	// Name returns a human-readable name for this capturer
	Name() string

	// IsAvailable checks if this capturer can be used in the current environment
	IsAvailable() bool
}

// Backend names accepted in configuration.
const (
	BackendOpenCV    = "opencv"
	BackendGStreamer = "gstreamer"
	BackendGstLaunch = "gst-launch"
	BackendX11       = "x11"
	BackendPattern   = "pattern"
)

// Backends lists every backend name in the default fallback order.
var Backends = []string{BackendOpenCV, BackendGStreamer, BackendGstLaunch, BackendX11, BackendPattern}

// Region is a rectangle of the X11 root window. A zero Width or Height
// means the full screen.
type Region struct {
	X      int `yaml:"x" mapstructure:"x" json:"x"`
	Y      int `yaml:"y" mapstructure:"y" json:"y"`
	Width  int `yaml:"width" mapstructure:"width" json:"width"`
	Height int `yaml:"height" mapstructure:"height" json:"height"`
}
