package capture

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

var errNoActiveWindow = errors.New("no active window")

// activeWindow returns the EWMH _NET_ACTIVE_WINDOW of root, or the input
// focus when the window manager does not publish one.
func activeWindow(conn *xgb.Conn, root xproto.Window) (xproto.Window, error) {
	atom, err := xproto.InternAtom(conn, true, uint16(len("_NET_ACTIVE_WINDOW")), "_NET_ACTIVE_WINDOW").Reply()
	if err == nil && atom.Atom != xproto.AtomNone {
		reply, err := xproto.GetProperty(conn, false, root, atom.Atom,
			xproto.AtomWindow, 0, 1).Reply()
		if err == nil {
			if win, ok := windowID(reply.Value); ok {
				return win, nil
			}
		}
	}

	focus, err := xproto.GetInputFocus(conn).Reply()
	if err != nil {
		return 0, fmt.Errorf("get input focus: %w", err)
	}
	if focus.Focus == xproto.WindowNone || focus.Focus == root {
		return 0, errNoActiveWindow
	}
	return focus.Focus, nil
}

// windowRegion returns the window's rectangle in root coordinates
func windowRegion(conn *xgb.Conn, root, win xproto.Window) (Region, error) {
	geom, err := xproto.GetGeometry(conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return Region{}, fmt.Errorf("get geometry: %w", err)
	}
	pos, err := xproto.TranslateCoordinates(conn, win, root, 0, 0).Reply()
	if err != nil {
		return Region{}, fmt.Errorf("translate coordinates: %w", err)
	}
	return Region{
		X:      int(pos.DstX),
		Y:      int(pos.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// windowID decodes a 32-bit little-endian window property
func windowID(value []byte) (xproto.Window, bool) {
	if len(value) < 4 {
		return 0, false
	}
	id := uint32(value[0]) |
		uint32(value[1])<<8 |
		uint32(value[2])<<16 |
		uint32(value[3])<<24
	if id == 0 {
		return 0, false
	}
	return xproto.Window(id), true
}
