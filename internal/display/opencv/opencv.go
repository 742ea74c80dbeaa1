// Package opencv shows frames in an OpenCV HighGUI window.
package opencv

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/display"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"gocv.io/x/gocv"
)

// Window is a HighGUI preview. HighGUI is not thread safe: Start, Show and
// Stop must all run on one OS thread, so the caller locks its goroutine to
// its thread with runtime.LockOSThread before Start.
type Window struct {
	title  string
	window *gocv.Window
	mu     sync.Mutex
}

// New creates a window sink titled display.WindowTitle
func New() *Window {
	return &Window{title: display.WindowTitle}
}

// Start opens the window
func (w *Window) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.window != nil {
		return fmt.Errorf("window already open")
	}
	w.window = gocv.NewWindow(w.title)
	logger.WithComponent("display").Info().Str("title", w.title).Msg("HighGUI window opened")
	return nil
}

// Stop closes the window
func (w *Window) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	return err
}

// Show draws the frame and pumps the event loop for one millisecond
func (w *Window) Show(frame *analysis.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.window == nil {
		return fmt.Errorf("window not open")
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix)
	if err != nil {
		return fmt.Errorf("failed to wrap frame: %w", err)
	}
	defer mat.Close()

	w.window.IMShow(mat)
	w.window.WaitKey(1)
	return nil
}

// Name returns the sink name
func (w *Window) Name() string {
	return display.BackendOpenCV
}
