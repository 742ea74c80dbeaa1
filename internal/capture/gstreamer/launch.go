package gstreamer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/capture"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
)

// Fallback caps for the subprocess, which needs a fixed frame size to
// split its output stream.
const (
	DefaultLaunchWidth  = 640
	DefaultLaunchHeight = 480
)

// Launch runs gst-launch-1.0 as a separate process writing raw BGR frames
// to stdout. It keeps GStreamer out of the process for systems where the
// cgo bindings misbehave.
type Launch struct {
	opts     Options
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	mu       sync.Mutex
	latest   *analysis.Frame
	fresh    bool
	running  bool
	ready    chan struct{}
	stopChan chan struct{}
	done     chan struct{}
}

// NewLaunch creates a subprocess-based capturer
func NewLaunch(opts Options) *Launch {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultLaunchWidth, DefaultLaunchHeight
	}
	return &Launch{opts: opts}
}

// Start spawns the gst-launch-1.0 process
func (l *Launch) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("pipeline already running")
	}

	log := logger.WithComponent("gst-launch")

	desc := l.opts.Description("fdsink fd=1 sync=false")
	log.Debug().Str("pipeline", desc).Msg("Starting GStreamer subprocess")

	l.cmd = exec.Command("gst-launch-1.0", append([]string{"-q"}, strings.Fields(desc)...)...)

	stdout, err := l.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	l.stdout = stdout

	stderr, err := l.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	l.stderr = stderr

	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start gst-launch: %w", err)
	}

	l.attach(l.stdout)
	go l.logStderr(l.stderr)

	log.Info().
		Str("device", l.opts.DevicePath()).
		Int("pid", l.cmd.Process.Pid).
		Int("width", l.opts.Width).
		Int("height", l.opts.Height).
		Msg("GStreamer subprocess started")

	return nil
}

// attach starts the frame reader on r. Callers hold l.mu.
func (l *Launch) attach(r io.Reader) {
	l.running = true
	l.fresh = false
	l.latest = nil
	l.ready = make(chan struct{}, 1)
	l.stopChan = make(chan struct{})
	l.done = make(chan struct{})

	go l.readFrames(r, l.ready, l.stopChan, l.done)
}

// readFrames splits stdout into fixed-size frames and keeps the latest
func (l *Launch) readFrames(r io.Reader, ready chan<- struct{}, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log := logger.WithComponent("gst-launch")

	w, h := l.opts.Width, l.opts.Height
	frameSize := Stride(w) * h
	reader := bufio.NewReaderSize(r, frameSize*2)
	buf := make([]byte, frameSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if _, err := io.ReadFull(reader, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				log.Warn().Msg("GStreamer subprocess closed its output")
			} else {
				log.Error().Err(err).Msg("Error reading frame")
			}
			return
		}

		pix, err := packRows(buf, w, h)
		if err != nil {
			continue
		}
		frame, err := analysis.NewFrame(w, h, 3, pix)
		if err != nil {
			continue
		}

		l.mu.Lock()
		l.latest = frame
		l.fresh = true
		l.mu.Unlock()

		select {
		case ready <- struct{}{}:
		default:
		}
	}
}

// logStderr forwards subprocess output to the logger
func (l *Launch) logStderr(r io.Reader) {
	log := logger.WithComponent("gst-launch")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "ERROR") || strings.Contains(line, "WARN") {
			log.Warn().Str("gst", line).Msg("GStreamer message")
		} else {
			log.Debug().Str("gst", line).Msg("GStreamer output")
		}
	}
}

// Acquire returns the newest frame not yet handed out, waiting at most
// pullTimeout for one to arrive. Once the subprocess has exited it returns
// an error wrapping io.EOF.
func (l *Launch) Acquire(ctx context.Context) (*analysis.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil, capture.ErrNotStarted
	}
	ready, done := l.ready, l.done
	frame, err := l.next()
	l.mu.Unlock()
	if frame != nil || err != nil {
		return frame, err
	}

	timer := time.NewTimer(pullTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ready:
		case <-done:
		case <-timer.C:
			return nil, capture.ErrFrameUnavailable
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		l.mu.Lock()
		frame, err := l.next()
		l.mu.Unlock()
		if frame != nil || err != nil {
			return frame, err
		}
	}
}

// next hands out the fresh frame, if any. A nil frame and nil error mean
// the caller should keep waiting. Callers hold l.mu.
func (l *Launch) next() (*analysis.Frame, error) {
	if !l.running {
		return nil, capture.ErrNotStarted
	}
	if l.fresh && l.latest != nil {
		l.fresh = false
		return l.latest, nil
	}
	select {
	case <-l.done:
		return nil, fmt.Errorf("gst-launch exited: %w", io.EOF)
	default:
		return nil, nil
	}
}

// Stop kills the subprocess and waits for the reader to exit
func (l *Launch) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.stopChan)
	cmd := l.cmd
	done := l.done
	l.mu.Unlock()

	log := logger.WithComponent("gst-launch")
	if cmd != nil && cmd.Process != nil {
		log.Debug().Int("pid", cmd.Process.Pid).Msg("Killing GStreamer subprocess")
		cmd.Process.Kill()
		cmd.Wait()
	}
	<-done

	log.Info().Msg("GStreamer subprocess stopped")
	return nil
}

// Name returns the capturer name
func (l *Launch) Name() string {
	return capture.BackendGstLaunch
}

// IsAvailable checks that gst-launch-1.0 is on PATH
func (l *Launch) IsAvailable() bool {
	_, err := exec.LookPath("gst-launch-1.0")
	return err == nil
}
