// Package recorder logs per-frame statistics and control values to a
// binary file: the magic "CAMMIDI1", then for every frame an 8-byte
// little-endian unix-nano timestamp, a 4-byte little-endian payload length
// and a CBOR payload.
package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
	"github.com/fxamacker/cbor/v2"
)

// Magic opens every recording
const Magic = "CAMMIDI1"

const headerSize = 12

var (
	// ErrBadMagic is returned when a file is not a recording
	ErrBadMagic = errors.New("not a cameramidi recording")

	// ErrClosed is returned by Record after Close
	ErrClosed = errors.New("recorder is closed")
)

// Value is one control value in a record
type Value struct {
	ID     string `cbor:"id" json:"id"`
	Number uint8  `cbor:"cc" json:"cc"`
	Value  uint8  `cbor:"value" json:"value"`
}

// Record is the CBOR payload stored for each frame
type Record struct {
	Session string                 `cbor:"session" json:"session"`
	Seq     uint64                 `cbor:"seq" json:"seq"`
	Width   int                    `cbor:"width" json:"width"`
	Height  int                    `cbor:"height" json:"height"`
	Variant string                 `cbor:"variant" json:"variant"`
	BGR     [3]analysis.Statistics `cbor:"bgr" json:"bgr"`
	HSV     [3]analysis.Statistics `cbor:"hsv" json:"hsv"`
	Values  []Value                `cbor:"values" json:"values"`
}

// Entry is a decoded record with its timestamp
type Entry struct {
	Time   time.Time `json:"time"`
	Record Record    `json:"record"`
}

// FromResult builds a record from a pipeline result
func FromResult(session, variant string, r pipeline.FrameResult) Record {
	values := make([]Value, len(r.Values))
	for i, v := range r.Values {
		values[i] = Value{ID: v.Name, Number: v.Number, Value: v.Value}
	}
	return Record{
		Session: session,
		Seq:     r.Seq,
		Width:   r.Width,
		Height:  r.Height,
		Variant: variant,
		BGR:     r.BGR,
		HSV:     r.HSV,
		Values:  values,
	}
}

// Writer appends records to a recording
type Writer struct {
	mu      sync.Mutex
	closer  io.Closer
	w       *bufio.Writer
	session string
	variant string
	path    string
	count   uint64
}

// NewWriter writes the magic to w and returns a writer for it
func NewWriter(w io.Writer, session, variant string) (*Writer, error) {
	bw := bufio.NewWriterSize(w, 64*1024)
	if _, err := bw.WriteString(Magic); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}

	rec := &Writer{w: bw, session: session, variant: variant}
	if c, ok := w.(io.Closer); ok {
		rec.closer = c
	}
	return rec, nil
}

// Create opens a new timestamped recording in dir
func Create(dir, session, variant string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.cammidi", timestamp, shortSession(session)))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w, err := NewWriter(f, session, variant)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.path = path

	logger.WithSession("recorder", session).Info().Str("path", path).Msg("Recording started")
	return w, nil
}

func shortSession(session string) string {
	if len(session) > 8 {
		return session[:8]
	}
	return session
}

// Path returns the file path for recordings made with Create
func (r *Writer) Path() string {
	return r.path
}

// Record appends one record stamped with t
func (r *Writer) Record(t time.Time, rec Record) error {
	payload, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return ErrClosed
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(t.UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	r.count++
	return r.w.Flush()
}

// Observe records a pipeline result
func (r *Writer) Observe(result pipeline.FrameResult) {
	if err := r.Record(result.Time, FromResult(r.session, r.variant, result)); err != nil {
		logger.WithSession("recorder", r.session).Warn().Err(err).Uint64("seq", result.Seq).Msg("Failed to record frame")
	}
}

// Count returns how many records were written
func (r *Writer) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes and closes the underlying file
func (r *Writer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return nil
	}
	err := r.w.Flush()
	r.w = nil
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader iterates over a recording
type Reader struct {
	r io.Reader
}

// NewReader checks the magic and returns a reader positioned at the first
// record.
func NewReader(r io.Reader) (*Reader, error) {
	header := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(header) != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, string(header))
	}
	return &Reader{r: bufio.NewReader(r)}, nil
}

// Next returns the next entry, or io.EOF at the end of the recording.
// A truncated trailing record also ends the recording.
func (r *Reader) Next() (Entry, error) {
	var meta [headerSize]byte
	if _, err := io.ReadFull(r.r, meta[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, err
	}

	ts := int64(binary.LittleEndian.Uint64(meta[:8]))
	size := binary.LittleEndian.Uint32(meta[8:12])

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, err
	}

	var rec Record
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return Entry{}, fmt.Errorf("decode record: %w", err)
	}
	return Entry{Time: time.Unix(0, ts), Record: rec}, nil
}

// ReadAll decodes every entry
func ReadAll(r io.Reader) ([]Entry, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for {
		e, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}
