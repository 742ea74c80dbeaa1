package display

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/overlay"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidFrame(t *testing.T, w, h int, b, g, r uint8) *analysis.Frame {
	t.Helper()
	pix := make([]byte, w*h*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = b, g, r
	}
	f, err := analysis.NewFrame(w, h, 3, pix)
	require.NoError(t, err)
	return f
}

func TestToRGBA_SwapsChannels(t *testing.T) {
	img := ToRGBA(solidFrame(t, 2, 1, 10, 20, 30))
	assert.Equal(t, color.RGBA{30, 20, 10, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{30, 20, 10, 255}, img.RGBAAt(1, 0))
}

func TestFit_Letterboxes(t *testing.T) {
	src := ToRGBA(solidFrame(t, 4, 2, 255, 255, 255))
	dst := Fit(src, 8, 8)

	assert.Equal(t, image.Rect(0, 0, 8, 8), dst.Bounds())
	// 4x2 scaled by 2 is 8x4, centred vertically
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dst.RGBAAt(4, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, dst.RGBAAt(4, 4))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dst.RGBAAt(4, 7))
}

func TestFit_EmptySource(t *testing.T) {
	dst := Fit(image.NewRGBA(image.Rect(0, 0, 0, 0)), 2, 2)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dst.RGBAAt(1, 1))
}

func TestPackZPixmap(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 2))
	img.SetRGBA(0, 0, color.RGBA{1, 2, 3, 255})
	img.SetRGBA(0, 1, color.RGBA{4, 5, 6, 255})

	data, err := PackZPixmap(img, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1, 0, 6, 5, 4, 0}, data)

	data, err = PackZPixmap(img, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1, 0, 6, 5, 4, 0}, data, "rows padded to four bytes")

	data, err = PackZPixmap(img, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1, 6, 5, 4}, data)

	_, err = PackZPixmap(img, 2, 4)
	assert.Error(t, err)
}

func TestMJPEGStream_ObserveThrottles(t *testing.T) {
	s := NewMJPEGStream(StreamConfig{FPS: 10}, overlay.NewDefaultManager())
	require.NoError(t, s.Start())
	defer s.Stop()

	frame := solidFrame(t, 16, 16, 0, 0, 255)
	t0 := time.Unix(1000, 0)

	s.Observe(pipeline.FrameResult{Seq: 1, Time: t0, Frame: frame, Width: 16, Height: 16})
	s.Observe(pipeline.FrameResult{Seq: 2, Time: t0.Add(20 * time.Millisecond), Frame: frame})
	s.Observe(pipeline.FrameResult{Seq: 3, Time: t0.Add(150 * time.Millisecond), Frame: frame})

	assert.Equal(t, uint64(2), s.Stats().Frames)

	img, err := jpeg.Decode(bytes.NewReader(s.Current()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
}

func TestMJPEGStream_StoppedIgnoresFrames(t *testing.T) {
	s := NewMJPEGStream(StreamConfig{}, nil)
	s.Observe(pipeline.FrameResult{Frame: solidFrame(t, 2, 2, 0, 0, 0), Time: time.Now()})
	assert.Nil(t, s.Current())
	assert.False(t, s.IsRunning())
}

func TestMJPEGStream_ScalesToConfiguredSize(t *testing.T) {
	s := NewMJPEGStream(StreamConfig{Width: 32, Height: 24}, overlay.NewManager())
	require.NoError(t, s.Start())

	require.NoError(t, s.WriteFrame(pipeline.FrameResult{Frame: solidFrame(t, 8, 8, 9, 9, 9)}))

	img, err := jpeg.Decode(bytes.NewReader(s.Current()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
}

func TestMJPEGStream_SnapshotHandler(t *testing.T) {
	s := NewMJPEGStream(StreamConfig{}, nil)
	require.NoError(t, s.Start())

	rec := httptest.NewRecorder()
	s.SnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/snapshot.jpg", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, s.WriteFrame(pipeline.FrameResult{Frame: solidFrame(t, 4, 4, 1, 2, 3)}))

	rec = httptest.NewRecorder()
	s.SnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/snapshot.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, s.Current(), rec.Body.Bytes())
}

func TestMJPEGStream_ViewerHandler(t *testing.T) {
	s := NewMJPEGStream(StreamConfig{}, nil)
	rec := httptest.NewRecorder()
	s.ViewerHandler()(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, rec.Body.String(), `src="/stream"`)
	assert.Contains(t, rec.Body.String(), "/api/controls/stream")
}
