package colorspace

import (
	"testing"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelToHSV(t *testing.T) {
	tests := []struct {
		name    string
		b, g, r uint8
		h, s, v uint8
	}{
		{name: "black", b: 0, g: 0, r: 0, h: 0, s: 0, v: 0},
		{name: "white", b: 255, g: 255, r: 255, h: 0, s: 0, v: 255},
		{name: "grey", b: 128, g: 128, r: 128, h: 0, s: 0, v: 128},
		{name: "red", b: 0, g: 0, r: 255, h: 0, s: 255, v: 255},
		{name: "green", b: 0, g: 255, r: 0, h: 60, s: 255, v: 255},
		{name: "blue", b: 255, g: 0, r: 0, h: 120, s: 255, v: 255},
		{name: "yellow", b: 0, g: 255, r: 255, h: 30, s: 255, v: 255},
		{name: "cyan", b: 255, g: 255, r: 0, h: 90, s: 255, v: 255},
		{name: "magenta", b: 255, g: 0, r: 255, h: 150, s: 255, v: 255},
		{name: "dark red", b: 0, g: 0, r: 128, h: 0, s: 255, v: 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := PixelToHSV(tt.b, tt.g, tt.r)
			assert.Equal(t, tt.h, h, "hue")
			assert.Equal(t, tt.s, s, "saturation")
			assert.Equal(t, tt.v, v, "value")
		})
	}
}

func TestPixelToHSV_Ranges(t *testing.T) {
	for b := 0; b < 256; b += 5 {
		for g := 0; g < 256; g += 5 {
			for r := 0; r < 256; r += 5 {
				h, _, _ := PixelToHSV(uint8(b), uint8(g), uint8(r))
				require.LessOrEqual(t, h, uint8(179), "bgr(%d,%d,%d)", b, g, r)
			}
		}
	}
}

func TestReference_Convert(t *testing.T) {
	src, err := analysis.NewFrame(2, 1, 3, []byte{0, 0, 0, 255, 0, 0})
	require.NoError(t, err)

	dst, err := Reference{}.Convert(src)
	require.NoError(t, err)
	assert.Equal(t, 2, dst.Width)
	assert.Equal(t, 1, dst.Height)
	assert.Equal(t, []byte{0, 0, 0, 120, 255, 255}, dst.Pix)
	// Source untouched.
	assert.Equal(t, []byte{0, 0, 0, 255, 0, 0}, src.Pix)
}

func TestReference_ConvertRejectsInvalid(t *testing.T) {
	_, err := Reference{}.Convert(&analysis.Frame{Width: 1, Height: 1, Channels: 4, Pix: make([]byte, 4)})
	assert.ErrorIs(t, err, analysis.ErrInvalidFrame)
}
