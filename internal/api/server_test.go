package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/config"
	"github.com/bryanchriswhite/cameramidi/internal/control"
	"github.com/bryanchriswhite/cameramidi/internal/display"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	settings pipeline.Settings
	counters pipeline.Counters
	last     *pipeline.FrameResult
}

func (f *fakeSource) Settings() pipeline.Settings { return f.settings }
func (f *fakeSource) State() pipeline.State       { return pipeline.Idle }
func (f *fakeSource) Counters() pipeline.Counters { return f.counters }

func (f *fakeSource) Last() (pipeline.FrameResult, bool) {
	if f.last == nil {
		return pipeline.FrameResult{}, false
	}
	return *f.last, true
}

func result(seq uint64, value uint8) pipeline.FrameResult {
	id := control.Identifier{Channel: control.Green, Kind: control.Mean}
	return pipeline.FrameResult{
		Seq:    seq,
		Time:   time.Unix(1700000000, 0),
		Width:  4,
		Height: 2,
		BGR:    [3]analysis.Statistics{{Mean: 10}, {Mean: 20}, {Mean: 30}},
		Values: []pipeline.ControlValue{{Identifier: id, Name: id.String(), Number: 2, Value: value}},
	}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *fakeSource, *Hub) {
	t.Helper()
	src := &fakeSource{settings: pipeline.DefaultSettings()}
	hub := NewHub()
	return NewServer(src, config.Defaults(), hub, opts...), src, hub
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/api/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "idle", body["state"])
}

func TestConfig(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "opencv", cfg.Capture.Backend)
	assert.Equal(t, 3.0, cfg.Capture.Zoom)
}

func TestStats(t *testing.T) {
	s, src, _ := newTestServer(t, WithSession("sess-1"))

	rec := get(t, s.Handler(), "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"last"`)

	last := result(9, 40)
	src.last = &last
	src.counters = pipeline.Counters{Frames: 9, Unavailable: 2, Messages: 216}

	rec = get(t, s.Handler(), "/api/stats")
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "sess-1", stats.Session)
	assert.Equal(t, uint64(9), stats.Counters.Frames)
	assert.Equal(t, uint64(2), stats.Counters.Unavailable)
	require.NotNil(t, stats.Last)
	assert.Equal(t, uint64(9), stats.Last.Seq)
	assert.Equal(t, 20.0, stats.Last.BGR[1].Mean)
	require.Len(t, stats.Last.Values, 1)
	assert.Equal(t, "green-mean", stats.Last.Values[0].Name)
	assert.Nil(t, stats.Stream)
}

func TestControls(t *testing.T) {
	s, src, _ := newTestServer(t)
	src.settings.Variant = control.Minimal

	rec := get(t, s.Handler(), "/api/controls")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Variant  string               `json:"variant"`
		Controls []control.Assignment `json:"controls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "minimal", body.Variant)
	require.Len(t, body.Controls, 6)
	assert.Equal(t, control.Assignment{Identifier: "blue-mean", Number: 1}, body.Controls[0])
	assert.Equal(t, control.Assignment{Identifier: "value-mean", Number: 12}, body.Controls[5])
}

func TestStreamRoutesOnlyWithStream(t *testing.T) {
	s, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/snapshot.jpg").Code)

	stream := display.NewMJPEGStream(display.StreamConfig{}, nil)
	s, _, _ = newTestServer(t, WithStream(stream))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/snapshot.jpg").Code)

	rec := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/controls/stream")

	rec = get(t, s.Handler(), "/api/stats")
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.NotNil(t, stats.Stream)
	assert.False(t, stats.Stream.Running)
}

func TestOptionsPreflight(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestControlsStream(t *testing.T) {
	s, _, hub := newTestServer(t)
	hub.Observe(result(1, 10))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/controls/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var update ControlsUpdate
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, uint64(1), update.Seq, "latest update sent on connect")

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.Observe(result(2, 99))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, uint64(2), update.Seq)
	require.Len(t, update.Values, 1)
	assert.Equal(t, uint8(99), update.Values[0].Value)
	assert.Equal(t, uint8(2), update.Values[0].Number)

	require.NoError(t, s.Shutdown(context.Background()))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "server closes the stream on shutdown")
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()

	for i := 0; i < 15; i++ {
		hub.Observe(result(uint64(i+1), 0))
	}
	assert.Len(t, ch, 10)
	assert.Equal(t, uint64(5), hub.Dropped())

	last, ok := hub.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(15), last.Seq)

	hub.Unsubscribe(ch)
	assert.Equal(t, 0, hub.Clients())
	hub.Unsubscribe(ch)
}

func TestHub_ObserveCopiesValues(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()

	r := result(1, 5)
	hub.Observe(r)
	r.Values[0].Value = 100

	update := <-ch
	assert.Equal(t, uint8(5), update.Values[0].Value)
}
