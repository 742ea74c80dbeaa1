package recorder

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/control"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(seq uint64) pipeline.FrameResult {
	id := control.Identifier{Channel: control.Blue, Kind: control.Mean}
	return pipeline.FrameResult{
		Seq:    seq,
		Time:   time.Unix(1700000000, int64(seq)),
		Width:  640,
		Height: 480,
		BGR: [3]analysis.Statistics{
			{Mean: 200.5, Median: 201, Min: 3, Max: 255},
		},
		Values: []pipeline.ControlValue{
			{Identifier: id, Name: id.String(), Number: 1, Value: 99},
		},
	}
}

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "session-1", "minimal")
	require.NoError(t, err)

	w.Observe(sampleResult(1))
	w.Observe(sampleResult(2))
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(2), w.Count())

	assert.True(t, strings.HasPrefix(buf.String(), Magic))

	entries, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, time.Unix(1700000000, 1).UnixNano(), first.Time.UnixNano())
	assert.Equal(t, "session-1", first.Record.Session)
	assert.Equal(t, "minimal", first.Record.Variant)
	assert.Equal(t, uint64(1), first.Record.Seq)
	assert.Equal(t, 640, first.Record.Width)
	assert.Equal(t, 200.5, first.Record.BGR[0].Mean)
	assert.Equal(t, uint8(255), first.Record.BGR[0].Max)
	assert.Equal(t, []Value{{ID: "blue-mean", Number: 1, Value: 99}}, first.Record.Values)
	assert.Equal(t, uint64(2), entries[1].Record.Seq)
}

func TestReader_BadMagic(t *testing.T) {
	_, err := NewReader(strings.NewReader("STXMRAW1"))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = NewReader(strings.NewReader("CAM"))
	assert.Error(t, err)
}

func TestReader_TruncatedRecordEnds(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "s", "full")
	require.NoError(t, err)
	require.NoError(t, w.Record(time.Unix(1, 0), FromResult("s", "full", sampleResult(1))))
	require.NoError(t, w.Record(time.Unix(2, 0), FromResult("s", "full", sampleResult(2))))

	data := buf.Bytes()
	r, err := NewReader(bytes.NewReader(data[:len(data)-5]))
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriter_ClosedRejectsRecords(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "s", "full")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.Record(time.Now(), Record{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCreate_WritesFile(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(dir+"/nested", "0123456789abcdef", "full")
	require.NoError(t, err)
	assert.Contains(t, w.Path(), "01234567.cammidi")

	w.Observe(sampleResult(7))
	require.NoError(t, w.Close())

	f, err := os.Open(w.Path())
	require.NoError(t, err)
	defer f.Close()

	entries, err := ReadAll(f)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(7), entries[0].Record.Seq)
}
