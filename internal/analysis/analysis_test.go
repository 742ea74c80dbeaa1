package analysis

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformFrame(w, h int, b, g, r uint8) *Frame {
	pix := make([]byte, w*h*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = b, g, r
	}
	return &Frame{Width: w, Height: h, Channels: 3, Pix: pix}
}

func TestNewFrame_Validation(t *testing.T) {
	tests := []struct {
		name     string
		w, h, ch int
		pixLen   int
		wantErr  bool
	}{
		{name: "valid", w: 4, h: 2, ch: 3, pixLen: 24},
		{name: "four channels", w: 4, h: 2, ch: 4, pixLen: 32, wantErr: true},
		{name: "single channel", w: 4, h: 2, ch: 1, pixLen: 8, wantErr: true},
		{name: "short buffer", w: 4, h: 2, ch: 3, pixLen: 23, wantErr: true},
		{name: "zero width", w: 0, h: 2, ch: 3, pixLen: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrame(tt.w, tt.h, tt.ch, make([]byte, tt.pixLen))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFrame)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplit_PreservesOrder(t *testing.T) {
	f := &Frame{Width: 2, Height: 2, Channels: 3, Pix: []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}}

	grids, err := Split(f)
	require.NoError(t, err)

	assert.Equal(t, []uint8{1, 4, 7, 10}, grids[0].Values)
	assert.Equal(t, []uint8{2, 5, 8, 11}, grids[1].Values)
	assert.Equal(t, []uint8{3, 6, 9, 12}, grids[2].Values)
	for _, g := range grids {
		assert.Equal(t, 2, g.Width)
		assert.Equal(t, 2, g.Height)
	}
}

func TestSplit_RejectsBadChannelCount(t *testing.T) {
	f := &Frame{Width: 1, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 4}}
	_, err := Split(f)
	assert.True(t, errors.Is(err, ErrInvalidFrame))
}

func TestExtract_Empty(t *testing.T) {
	_, err := Extract(Grid{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestExtract_Known(t *testing.T) {
	tests := []struct {
		name   string
		values []uint8
		want   Statistics
	}{
		{
			name:   "single",
			values: []uint8{42},
			want:   Statistics{Mean: 42, Median: 42, Min: 42, Max: 42},
		},
		{
			name:   "odd count",
			values: []uint8{9, 1, 5},
			want:   Statistics{Mean: 5, Median: 5, Min: 1, Max: 9},
		},
		{
			name:   "even count averages middles",
			values: []uint8{10, 0, 255, 3},
			want:   Statistics{Mean: 67, Median: 6.5, Min: 0, Max: 255},
		},
		{
			name:   "uniform 128",
			values: []uint8{128, 128, 128, 128, 128, 128},
			want:   Statistics{Mean: 128, Median: 128, Min: 128, Max: 128},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(Grid{Width: len(tt.values), Height: 1, Values: tt.values})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_MeanTruncatesForReporting(t *testing.T) {
	s, err := Extract(Grid{Width: 3, Height: 1, Values: []uint8{1, 1, 2}})
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3.0, s.Mean, 1e-12)
	assert.Equal(t, 1, s.MeanInt())
}

func TestExtract_OrderingProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(500)
		values := make([]uint8, n)
		for j := range values {
			values[j] = uint8(rng.Intn(256))
		}

		s, err := Extract(Grid{Width: n, Height: 1, Values: values})
		require.NoError(t, err)

		min, max := float64(s.Min), float64(s.Max)
		assert.LessOrEqual(t, min, s.Median)
		assert.LessOrEqual(t, s.Median, max)
		assert.LessOrEqual(t, min, s.Mean)
		assert.LessOrEqual(t, s.Mean, max)

		sorted := append([]uint8(nil), values...)
		sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
		var want float64
		if n%2 == 1 {
			want = float64(sorted[n/2])
		} else {
			want = (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
		}
		assert.Equal(t, want, s.Median)
		assert.Equal(t, sorted[0], s.Min)
		assert.Equal(t, sorted[n-1], s.Max)
	}
}

func TestExtractAll_UniformFrame(t *testing.T) {
	grids, err := Split(uniformFrame(8, 6, 255, 0, 128))
	require.NoError(t, err)

	stats, err := ExtractAll(grids)
	require.NoError(t, err)

	assert.Equal(t, 255.0, stats[0].Mean)
	assert.Equal(t, 0.0, stats[1].Mean)
	assert.Equal(t, 128.0, stats[2].Median)
	assert.Equal(t, uint8(128), stats[2].Min)
	assert.Equal(t, uint8(128), stats[2].Max)
}
