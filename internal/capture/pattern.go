package capture

import (
	"context"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
)

// Pattern is a synthetic capturer. Each frame is a gradient whose blue
// component follows x, green follows y and red steps with the frame count,
// so every channel moves across its whole range over time.
type Pattern struct {
	width  int
	height int
	mu     sync.Mutex
	seq    int
	ready  bool
}

// NewPattern creates a pattern source of the given size
func NewPattern(width, height int) *Pattern {
	return &Pattern{width: width, height: height}
}

// Start marks the source ready
func (p *Pattern) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ready = true
	p.seq = 0
	return nil
}

// Stop marks the source stopped
func (p *Pattern) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ready = false
	return nil
}

// Acquire renders the next gradient frame
func (p *Pattern) Acquire(ctx context.Context) (*analysis.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return nil, ErrNotStarted
	}

	w, h := p.width, p.height
	pix := make([]byte, w*h*3)
	red := byte(p.seq * 4)
	for y := 0; y < h; y++ {
		g := scale(y, h)
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			pix[i] = scale(x, w)
			pix[i+1] = g
			pix[i+2] = red
		}
	}
	p.seq++

	return analysis.NewFrame(w, h, 3, pix)
}

// Name returns the capturer name
func (p *Pattern) Name() string {
	return BackendPattern
}

// IsAvailable always returns true
func (p *Pattern) IsAvailable() bool {
	return true
}

func scale(i, n int) byte {
	if n <= 1 {
		return 0
	}
	return byte(i * 255 / (n - 1))
}

// Sequence replays a fixed list of frames. A nil entry yields
// ErrFrameUnavailable for that tick. Once exhausted every call returns
// ErrFrameUnavailable.
type Sequence struct {
	frames []*analysis.Frame
	mu     sync.Mutex
	next   int
	ready  bool
}

// NewSequence creates a replay source
func NewSequence(frames ...*analysis.Frame) *Sequence {
	return &Sequence{frames: frames}
}

// Start rewinds the sequence
func (s *Sequence) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next = 0
	s.ready = true
	return nil
}

// Stop marks the sequence stopped
func (s *Sequence) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = false
	return nil
}

// Acquire returns the next recorded frame
func (s *Sequence) Acquire(ctx context.Context) (*analysis.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil, ErrNotStarted
	}
	if s.next >= len(s.frames) {
		return nil, ErrFrameUnavailable
	}

	f := s.frames[s.next]
	s.next++
	if f == nil {
		return nil, ErrFrameUnavailable
	}
	return f, nil
}

// Remaining returns how many entries have not been replayed yet
func (s *Sequence) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) - s.next
}

// Name returns the capturer name
func (s *Sequence) Name() string {
	return "sequence"
}

// IsAvailable always returns true
func (s *Sequence) IsAvailable() bool {
	return true
}
