package display

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/overlay"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
)

// StreamConfig sizes and paces the MJPEG preview
type StreamConfig struct {
	Width   int
	Height  int
	FPS     int
	Quality int
}

// MJPEGStream encodes processed frames with the control overlay and
// streams them as Motion JPEG over HTTP. It observes the pipeline and
// drops frames rather than slow it down.
type MJPEGStream struct {
	config  StreamConfig
	overlay *overlay.Manager
	running bool
	mu      sync.RWMutex

	lastEncode time.Time
	interval   time.Duration

	// Latest encoded frame
	frameMu    sync.RWMutex
	current    []byte
	lastUpdate time.Time

	// Connected clients
	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	// Stats
	frameCount uint64
	startTime  time.Time
}

// NewMJPEGStream creates a new MJPEG stream
func NewMJPEGStream(config StreamConfig, ov *overlay.Manager) *MJPEGStream {
	if config.FPS <= 0 {
		config.FPS = 15
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = 80
	}
	if ov == nil {
		ov = overlay.NewManager()
	}
	return &MJPEGStream{
		config:   config,
		overlay:  ov,
		interval: time.Second / time.Duration(config.FPS),
		clients:  make(map[chan []byte]struct{}),
	}
}

// Start enables encoding
func (m *MJPEGStream) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("MJPEG stream already running")
	}

	m.running = true
	m.startTime = time.Now()
	m.frameCount = 0

	logger.WithComponent("mjpeg").Info().
		Int("width", m.config.Width).
		Int("height", m.config.Height).
		Int("fps", m.config.FPS).
		Msg("MJPEG stream started")
	return nil
}

// Stop disconnects every client
func (m *MJPEGStream) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("mjpeg").Info().Uint64("frames", m.frameCount).Msg("MJPEG stream stopped")
	return nil
}

// IsRunning returns true if the stream is active
func (m *MJPEGStream) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Observe encodes the frame when the stream is due for one
func (m *MJPEGStream) Observe(result pipeline.FrameResult) {
	m.overlay.Update(result)

	if result.Frame == nil || !m.due(result.Time) {
		return
	}
	if err := m.WriteFrame(result); err != nil {
		logger.WithComponent("mjpeg").Debug().Err(err).Msg("Failed to encode frame")
	}
}

// due rate-limits encoding to the configured FPS
func (m *MJPEGStream) due(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return false
	}
	if !m.lastEncode.IsZero() && now.Sub(m.lastEncode) < m.interval {
		return false
	}
	m.lastEncode = now
	return true
}

// WriteFrame renders the frame with the overlay and sends it to every
// client. Slow clients skip frames.
func (m *MJPEGStream) WriteFrame(result pipeline.FrameResult) error {
	img := ToRGBA(result.Frame)
	if m.config.Width > 0 && m.config.Height > 0 {
		img = Fit(img, m.config.Width, m.config.Height)
	}
	if err := m.overlay.Render(img); err != nil {
		return fmt.Errorf("failed to render overlay: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: m.config.Quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	jpegData := buf.Bytes()

	m.frameMu.Lock()
	m.current = jpegData
	m.lastUpdate = time.Now()
	m.frameMu.Unlock()

	m.mu.Lock()
	m.frameCount++
	m.mu.Unlock()

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- jpegData:
		default:
		}
	}
	m.clientsMu.RUnlock()

	return nil
}

// Current returns the latest encoded JPEG, if any
func (m *MJPEGStream) Current() []byte {
	m.frameMu.RLock()
	defer m.frameMu.RUnlock()
	return m.current
}

// StreamStats summarizes the stream
type StreamStats struct {
	Running    bool      `json:"running"`
	Frames     uint64    `json:"frames"`
	Clients    int       `json:"clients"`
	FPS        float64   `json:"fps"`
	LastUpdate time.Time `json:"last_update"`
}

// Stats returns the stream counters
func (m *MJPEGStream) Stats() StreamStats {
	m.mu.RLock()
	s := StreamStats{Running: m.running, Frames: m.frameCount}
	startTime := m.startTime
	m.mu.RUnlock()

	if s.Running && !startTime.IsZero() {
		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			s.FPS = float64(s.Frames) / elapsed
		}
	}

	m.frameMu.RLock()
	s.LastUpdate = m.lastUpdate
	m.frameMu.RUnlock()

	m.clientsMu.RLock()
	s.Clients = len(m.clients)
	m.clientsMu.RUnlock()
	return s
}

// StreamHandler serves the multipart MJPEG stream. Mount it at /stream.
func (m *MJPEGStream) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("Connection", "close")

		frameChan := make(chan []byte, 2)

		m.clientsMu.Lock()
		m.clients[frameChan] = struct{}{}
		clientCount := len(m.clients)
		m.clientsMu.Unlock()

		log := logger.WithComponent("mjpeg")
		log.Info().Int("clients", clientCount).Msg("Stream client connected")

		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, frameChan)
			clientCount := len(m.clients)
			m.clientsMu.Unlock()
			log.Info().Int("clients", clientCount).Msg("Stream client disconnected")
		}()

		if current := m.Current(); current != nil {
			if err := writePart(w, current); err != nil {
				return
			}
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case jpegData, ok := <-frameChan:
				if !ok {
					return
				}
				if err := writePart(w, jpegData); err != nil {
					return
				}
			}
		}
	}
}

func writePart(w http.ResponseWriter, jpegData []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
		return err
	}
	if _, err := w.Write(jpegData); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// SnapshotHandler serves the latest frame as a single JPEG
func (m *MJPEGStream) SnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := m.Current()
		if current == nil {
			http.Error(w, "no frame yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(current)
	}
}

// ViewerHandler serves a page with the stream and a live control table
func (m *MJPEGStream) ViewerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(viewerHTML))
	}
}

const viewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>cameramidi</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #000;
            color: #ccc;
            font-family: system-ui, -apple-system, sans-serif;
            display: flex;
            min-height: 100vh;
        }
        img {
            flex: 1;
            max-width: 75vw;
            height: 100vh;
            object-fit: contain;
            background: #000;
        }
        table {
            margin: 16px;
            font-family: monospace;
            font-size: 13px;
            border-collapse: collapse;
            align-self: flex-start;
        }
        td { padding: 2px 8px; }
        .bar { background: #4682b4; height: 10px; }
    </style>
</head>
<body>
    <img src="/stream" alt="cameramidi preview">
    <table id="controls"></table>
    <script>
        const table = document.getElementById('controls');
        const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(proto + location.host + '/api/controls/stream');
        ws.onmessage = (ev) => {
            const frame = JSON.parse(ev.data);
            table.innerHTML = frame.values.map(v =>
                '<tr><td>' + v.id + '</td><td>cc' + v.cc + '</td><td>' + v.value +
                '</td><td><div class="bar" style="width:' + v.value + 'px"></div></td></tr>'
            ).join('');
        };
    </script>
</body>
</html>`
