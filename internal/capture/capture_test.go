package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapturer struct {
	name      string
	available bool
	startErr  error
	started   bool
	stopped   bool
}

func (f *fakeCapturer) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeCapturer) Stop() error {
	f.stopped = true
	return nil
}

func (f *fakeCapturer) Acquire(ctx context.Context) (*analysis.Frame, error) {
	return analysis.NewFrame(1, 1, 3, []byte{1, 2, 3})
}

func (f *fakeCapturer) Name() string      { return f.name }
func (f *fakeCapturer) IsAvailable() bool { return f.available }

func TestRouter_PicksFirstStartable(t *testing.T) {
	unavailable := &fakeCapturer{name: "a"}
	broken := &fakeCapturer{name: "b", available: true, startErr: errors.New("no device")}
	good := &fakeCapturer{name: "c", available: true}
	never := &fakeCapturer{name: "d", available: true}

	r := NewRouter(unavailable, broken, good, never)
	assert.Equal(t, "router", r.Name())

	require.NoError(t, r.Start())
	assert.Equal(t, "c", r.Name())
	assert.Same(t, good, r.Active())
	assert.False(t, never.started)

	f, err := r.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, f.Pix)

	require.NoError(t, r.Stop())
	assert.True(t, good.stopped)
	assert.Nil(t, r.Active())
}

func TestRouter_NoBackend(t *testing.T) {
	r := NewRouter(&fakeCapturer{name: "a"}, nil)
	assert.False(t, r.IsAvailable())

	err := r.Start()
	assert.ErrorIs(t, err, ErrNoBackend)

	_, err = r.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestOrder(t *testing.T) {
	assert.Equal(t, []string{BackendPattern}, Order(BackendPattern))
	assert.Equal(t,
		[]string{BackendGStreamer, BackendOpenCV, BackendGstLaunch, BackendX11},
		Order(BackendGStreamer))
	assert.Equal(t, BackendOpenCV, Order(BackendOpenCV)[0])
	assert.NotContains(t, Order(BackendOpenCV), BackendPattern)
}

func TestPattern_Frames(t *testing.T) {
	p := NewPattern(4, 3)

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, p.Start())

	first, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Validate())

	b, g, r := first.At(0, 0)
	assert.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{b, g, r})
	b, g, _ = first.At(3, 2)
	assert.Equal(t, uint8(255), b)
	assert.Equal(t, uint8(255), g)

	second, err := p.Acquire(context.Background())
	require.NoError(t, err)
	_, _, r = second.At(0, 0)
	assert.Equal(t, uint8(4), r)
}

func TestPattern_CancelledContext(t *testing.T) {
	p := NewPattern(2, 2)
	require.NoError(t, p.Start())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSequence_Replay(t *testing.T) {
	f1, err := analysis.NewFrame(1, 1, 3, []byte{1, 1, 1})
	require.NoError(t, err)
	f2, err := analysis.NewFrame(1, 1, 3, []byte{2, 2, 2})
	require.NoError(t, err)

	s := NewSequence(f1, nil, f2)
	require.NoError(t, s.Start())
	assert.Equal(t, 3, s.Remaining())

	got, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, f1, got)

	_, err = s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrFrameUnavailable)

	got, err = s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, f2, got)

	_, err = s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrFrameUnavailable)
	assert.Equal(t, 0, s.Remaining())
}

func TestClampRegion(t *testing.T) {
	tests := []struct {
		name string
		in   Region
		want Region
	}{
		{name: "zero means full screen", in: Region{}, want: Region{Width: 1920, Height: 1080}},
		{name: "inside", in: Region{X: 10, Y: 20, Width: 100, Height: 50}, want: Region{X: 10, Y: 20, Width: 100, Height: 50}},
		{name: "overflow trimmed", in: Region{X: 1900, Y: 1000, Width: 100, Height: 100}, want: Region{X: 1900, Y: 1000, Width: 20, Height: 80}},
		{name: "negative origin", in: Region{X: -5, Y: -5, Width: 10, Height: 10}, want: Region{Width: 10, Height: 10}},
		{name: "origin off screen", in: Region{X: 5000, Y: 5000, Width: 10, Height: 10}, want: Region{Width: 10, Height: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampRegion(tt.in, 1920, 1080))
		})
	}
}

func TestBGRXToFrame(t *testing.T) {
	data := []byte{
		1, 2, 3, 0xff, 4, 5, 6, 0xff,
		7, 8, 9, 0xff, 10, 11, 12, 0xff,
	}

	f, err := bgrxToFrame(data, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, f.Pix)

	_, err = bgrxToFrame(data[:12], 2, 2)
	assert.ErrorIs(t, err, ErrFrameUnavailable)
}

func TestWindowID(t *testing.T) {
	win, ok := windowID([]byte{0x01, 0x00, 0x60, 0x03})
	require.True(t, ok)
	assert.Equal(t, xproto.Window(0x03600001), win)

	_, ok = windowID([]byte{0, 0, 0, 0})
	assert.False(t, ok, "zero means no active window")

	_, ok = windowID([]byte{1, 2})
	assert.False(t, ok)
}
