package capture

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
)

// X11Capturer grabs a region of the X11 root window, so any on-screen
// video (a browser tab, a player) can drive the controller. With
// followFocus the region tracks the active window on every frame.
type X11Capturer struct {
	region      Region
	followFocus bool
	conn        *xgb.Conn
	root        xproto.Window
	screen      *xproto.ScreenInfo
	mu          sync.Mutex
}

// NewX11Capturer creates a new X11 capturer for the given region
func NewX11Capturer(region Region, followFocus bool) *X11Capturer {
	return &X11Capturer{region: region, followFocus: followFocus}
}

// Start connects to the X server and resolves the capture region
func (c *X11Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	if depth := int(screen.RootDepth); depth != 24 && depth != 32 {
		conn.Close()
		return fmt.Errorf("unsupported root depth %d", depth)
	}

	c.conn = conn
	c.screen = screen
	c.root = screen.Root
	c.region = clampRegion(c.region, int(screen.WidthInPixels), int(screen.HeightInPixels))

	logger.WithComponent("x11-capturer").Info().
		Bool("follow_focus", c.followFocus).
		Int("x", c.region.X).
		Int("y", c.region.Y).
		Int("width", c.region.Width).
		Int("height", c.region.Height).
		Msg("X11 capture region")

	return nil
}

// Stop closes the X11 connection
func (c *X11Capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

// Acquire grabs the region and converts the BGRX pixmap to a BGR frame
func (c *X11Capturer) Acquire(ctx context.Context) (*analysis.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotStarted
	}

	r := c.region
	if c.followFocus {
		focused, err := c.focusedRegion()
		if err != nil {
			logger.WithComponent("x11-capturer").Debug().Err(err).Msg("No focused window")
			return nil, fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
		}
		r = focused
	}

	reply, err := xproto.GetImage(
		c.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(c.root),
		int16(r.X), int16(r.Y),
		uint16(r.Width), uint16(r.Height),
		0xffffffff,
	).Reply()
	if err != nil {
		logger.WithComponent("x11-capturer").Debug().Err(err).Msg("GetImage failed")
		return nil, fmt.Errorf("%w: %v", ErrFrameUnavailable, err)
	}

	return bgrxToFrame(reply.Data, r.Width, r.Height)
}

func (c *X11Capturer) focusedRegion() (Region, error) {
	win, err := activeWindow(c.conn, c.root)
	if err != nil {
		return Region{}, err
	}
	r, err := windowRegion(c.conn, c.root, win)
	if err != nil {
		return Region{}, err
	}
	return clampRegion(r, int(c.screen.WidthInPixels), int(c.screen.HeightInPixels)), nil
}

// Name returns the capturer name
func (c *X11Capturer) Name() string {
	return BackendX11
}

// IsAvailable checks if an X display is configured
func (c *X11Capturer) IsAvailable() bool {
	return os.Getenv("DISPLAY") != ""
}

// clampRegion fits r inside a screen of the given size
func clampRegion(r Region, screenW, screenH int) Region {
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	if r.X >= screenW {
		r.X = 0
	}
	if r.Y >= screenH {
		r.Y = 0
	}
	if r.Width <= 0 || r.X+r.Width > screenW {
		r.Width = screenW - r.X
	}
	if r.Height <= 0 || r.Y+r.Height > screenH {
		r.Height = screenH - r.Y
	}
	return r
}

// bgrxToFrame drops the padding byte of each 32-bit ZPixmap pixel
func bgrxToFrame(data []byte, width, height int) (*analysis.Frame, error) {
	if len(data) < width*height*4 {
		return nil, fmt.Errorf("%w: short image data (%d bytes for %dx%d)",
			ErrFrameUnavailable, len(data), width, height)
	}

	pix := make([]byte, width*height*3)
	for i, j := 0, 0; j < len(pix); i, j = i+4, j+3 {
		pix[j] = data[i]
		pix[j+1] = data[i+1]
		pix[j+2] = data[i+2]
	}

	return analysis.NewFrame(width, height, 3, pix)
}
