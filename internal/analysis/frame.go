// Package analysis reduces captured frames to per-channel statistics.
package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFrame is returned when a frame does not carry three 8-bit channels
	// or its pixel buffer does not match its dimensions.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrEmptyInput is returned when statistics are requested for an empty grid.
	ErrEmptyInput = errors.New("empty input")
)

// Frame is a row-major grid of interleaved 8-bit pixels.
// The capture layer produces BGR frames; the converter produces HSV frames
// with the same layout.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// NewFrame wraps pix as a frame. pix is not copied.
func NewFrame(width, height, channels int, pix []byte) (*Frame, error) {
	f := &Frame{Width: width, Height: height, Channels: channels, Pix: pix}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the frame dimensions against its buffer.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if f.Channels != 3 {
		return fmt.Errorf("%w: %d channels, want 3", ErrInvalidFrame, f.Channels)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d", ErrInvalidFrame, len(f.Pix), want)
	}
	return nil
}

// At returns the three components of the pixel at (x, y).
func (f *Frame) At(x, y int) (uint8, uint8, uint8) {
	i := (y*f.Width + x) * f.Channels
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Grid holds a single component of a frame.
type Grid struct {
	Width  int
	Height int
	Values []uint8
}

// Len returns the number of scalars in the grid.
func (g Grid) Len() int {
	return len(g.Values)
}

// Split decomposes a 3-channel frame into one grid per component,
// preserving row-major order.
func Split(f *Frame) ([3]Grid, error) {
	var grids [3]Grid
	if err := f.Validate(); err != nil {
		return grids, err
	}

	n := f.Width * f.Height
	for c := range grids {
		grids[c] = Grid{Width: f.Width, Height: f.Height, Values: make([]uint8, n)}
	}

	c0, c1, c2 := grids[0].Values, grids[1].Values, grids[2].Values
	for i, p := 0, 0; i < n; i, p = i+1, p+3 {
		c0[i] = f.Pix[p]
		c1[i] = f.Pix[p+1]
		c2[i] = f.Pix[p+2]
	}
	return grids, nil
}
