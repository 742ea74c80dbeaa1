package display

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
)

// X11Window shows frames in a plain X11 window, letterboxed to its size
type X11Window struct {
	conn          *xgb.Conn
	screen        *xproto.ScreenInfo
	window        xproto.Window
	gc            xproto.Gcontext
	width         int
	height        int
	bytesPerPixel int
	scanlinePad   int
	running       bool
	mu            sync.Mutex
}

// NewX11Window creates a window sink of the given size
func NewX11Window(width, height int) *X11Window {
	return &X11Window{width: width, height: height}
}

// Start connects to the X server, then creates and maps the window
func (m *X11Window) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("display already running")
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	m.conn = conn

	setup := xproto.Setup(conn)
	m.screen = setup.DefaultScreen(conn)

	for _, format := range setup.PixmapFormats {
		if format.Depth == m.screen.RootDepth {
			m.bytesPerPixel = int(format.BitsPerPixel) / 8
			m.scanlinePad = int(format.ScanlinePad) / 8
			break
		}
	}
	if m.bytesPerPixel != 3 && m.bytesPerPixel != 4 {
		conn.Close()
		return fmt.Errorf("unsupported pixmap format for depth %d", m.screen.RootDepth)
	}

	windowID, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	m.window = windowID

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000,
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}

	err = xproto.CreateWindowChecked(
		conn,
		m.screen.RootDepth,
		m.window,
		m.screen.Root,
		0, 0,
		uint16(m.width), uint16(m.height),
		0,
		xproto.WindowClassInputOutput,
		m.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create window: %w", err)
	}

	log := logger.WithComponent("display")
	if err := m.setProperty("_NET_WM_NAME", "UTF8_STRING", WindowTitle); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := m.setProperty("WM_CLASS", "STRING", "cameramidi\x00CameraMIDI\x00"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(conn, m.window).Check(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(conn, gc, xproto.Drawable(m.window), 0, nil).Check(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create GC: %w", err)
	}
	m.gc = gc
	conn.Sync()

	m.running = true
	log.Info().
		Int("width", m.width).
		Int("height", m.height).
		Uint32("window_id", uint32(m.window)).
		Msg("Preview window created")

	return nil
}

// Stop destroys the window and closes the connection
func (m *X11Window) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	xproto.FreeGC(m.conn, m.gc)
	xproto.DestroyWindow(m.conn, m.window)
	m.conn.Sync()
	m.conn.Close()

	m.running = false
	logger.WithComponent("display").Info().Msg("Preview window closed")
	return nil
}

// Show scales the frame into the window
func (m *X11Window) Show(frame *analysis.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return fmt.Errorf("display not running")
	}

	img := Fit(ToRGBA(frame), m.width, m.height)
	data, err := PackZPixmap(img, m.bytesPerPixel, m.scanlinePad)
	if err != nil {
		return err
	}

	err = xproto.PutImageChecked(
		m.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(m.window),
		m.gc,
		uint16(m.width),
		uint16(m.height),
		0, 0,
		0,
		m.screen.RootDepth,
		data,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to put image: %w", err)
	}
	return nil
}

// Name returns the sink name
func (m *X11Window) Name() string {
	return BackendX11
}

// PackZPixmap converts an RGBA image into ZPixmap scanlines of
// bytesPerPixel (3 or 4) bytes in BGR(x) order, each row padded to a
// multiple of padBytes.
func PackZPixmap(img *image.RGBA, bytesPerPixel, padBytes int) ([]byte, error) {
	if bytesPerPixel != 3 && bytesPerPixel != 4 {
		return nil, fmt.Errorf("unsupported bytes per pixel: %d", bytesPerPixel)
	}
	if padBytes <= 0 {
		padBytes = 1
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	unpadded := w * bytesPerPixel
	stride := ((unpadded + padBytes - 1) / padBytes) * padBytes

	data := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := data[y*stride:]
		for x := 0; x < w; x++ {
			s := x * 4
			d := x * bytesPerPixel
			dst[d] = src[s+2]
			dst[d+1] = src[s+1]
			dst[d+2] = src[s]
		}
	}
	return data, nil
}

// setProperty sets an 8-bit string property on the window
func (m *X11Window) setProperty(name, typeName, value string) error {
	prop, err := m.atom(name)
	if err != nil {
		return err
	}
	typ, err := m.atom(typeName)
	if err != nil {
		return err
	}

	return xproto.ChangePropertyChecked(
		m.conn,
		xproto.PropModeReplace,
		m.window,
		prop,
		typ,
		8,
		uint32(len(value)),
		[]byte(value),
	).Check()
}

// atom gets an atom ID by name
func (m *X11Window) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(m.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
