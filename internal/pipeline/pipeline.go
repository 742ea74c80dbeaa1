// Package pipeline turns captured frames into control messages: split,
// extract statistics for BGR and HSV, normalize, build and emit, one frame
// at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/capture"
	"github.com/bryanchriswhite/cameramidi/internal/colorspace"
	"github.com/bryanchriswhite/cameramidi/internal/control"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/output"
	"gitlab.com/gomidi/midi/v2"
)

// DefaultPacing is the delay after each emitted frame
const DefaultPacing = 5 * time.Millisecond

// Settings is the read-only configuration of a pipeline
type Settings struct {
	Variant control.Variant
	Mapping control.Mapping
	Pacing  time.Duration
	Print   bool
}

// DefaultSettings returns the full variant with default control numbers,
// 5ms pacing and diagnostics enabled.
func DefaultSettings() Settings {
	return Settings{
		Variant: control.Full,
		Mapping: control.DefaultMapping(),
		Pacing:  DefaultPacing,
		Print:   true,
	}
}

// State is the loop state
type State int

const (
	Idle State = iota
	Processing
)

func (s State) String() string {
	if s == Processing {
		return "processing"
	}
	return "idle"
}

// Counters summarize a run
type Counters struct {
	Frames      uint64 `json:"frames"`
	Unavailable uint64 `json:"unavailable"`
	Messages    uint64 `json:"messages"`
	SendErrors  uint64 `json:"send_errors"`
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Pipeline
type Option func(*Pipeline)

// WithDisplay adds a sink that sees every captured frame
func WithDisplay(d Display) Option {
	return func(p *Pipeline) { p.displays = append(p.displays, d) }
}

// WithObserver adds an observer notified after each frame
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// WithDiagnostics sets where per-frame diagnostics are printed
func WithDiagnostics(w io.Writer) Option {
	return func(p *Pipeline) { p.diag = w }
}

// WithSleep replaces the pacing sleep
func WithSleep(sleep SleepFunc) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// WithClock replaces the timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs the acquire, compute, emit, pace loop
type Pipeline struct {
	settings  Settings
	capturer  capture.Capturer
	converter colorspace.Converter
	out       output.Output
	displays  []Display
	observers []Observer
	diag      io.Writer
	sleep     SleepFunc
	now       func() time.Time

	mu       sync.RWMutex
	state    State
	seq      uint64
	counters Counters
	last     *FrameResult
}

// New creates a pipeline
func New(settings Settings, capturer capture.Capturer, converter colorspace.Converter, out output.Output, opts ...Option) (*Pipeline, error) {
	if capturer == nil {
		return nil, errors.New("pipeline: capturer is required")
	}
	if converter == nil {
		return nil, errors.New("pipeline: converter is required")
	}
	if out == nil {
		return nil, errors.New("pipeline: output is required")
	}
	if settings.Pacing < 0 {
		return nil, fmt.Errorf("pipeline: negative pacing %s", settings.Pacing)
	}

	p := &Pipeline{
		settings:  settings,
		capturer:  capturer,
		converter: converter,
		out:       out,
		diag:      io.Discard,
		sleep:     sleepContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Settings returns the pipeline configuration
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// State returns whether a frame is being processed
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Counters returns a snapshot of the run counters
func (p *Pipeline) Counters() Counters {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters
}

// Last returns the most recent frame result, if any
func (p *Pipeline) Last() (FrameResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return FrameResult{}, false
	}
	return *p.last, true
}

// Run loops until ctx is cancelled. An unavailable frame skips straight to
// the next attempt without pacing. Cancellation returns nil; any other
// capture, conversion or build failure stops the loop with that error.
func (p *Pipeline) Run(ctx context.Context) error {
	log := logger.WithComponent("pipeline")
	log.Info().
		Str("variant", p.settings.Variant.String()).
		Dur("pacing", p.settings.Pacing).
		Str("capture", p.capturer.Name()).
		Str("converter", p.converter.Name()).
		Str("output", p.out.Name()).
		Msg("Pipeline started")

	for {
		if ctx.Err() != nil {
			log.Info().Interface("counters", p.Counters()).Msg("Pipeline stopped")
			return nil
		}

		frame, err := p.capturer.Acquire(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrFrameUnavailable) {
				p.mu.Lock()
				p.counters.Unavailable++
				p.mu.Unlock()
				log.Debug().Err(err).Msg("Frame unavailable")
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			return fmt.Errorf("acquire frame: %w", err)
		}

		if err := p.Step(frame); err != nil {
			return err
		}

		if err := p.sleep(ctx, p.settings.Pacing); err != nil {
			continue
		}
	}
}

// Step processes one captured frame: display, compute, emit, observe.
// Nothing is sent when computation fails.
func (p *Pipeline) Step(frame *analysis.Frame) error {
	p.setState(Processing)
	defer p.setState(Idle)

	log := logger.WithComponent("pipeline")

	for _, d := range p.displays {
		if err := d.Show(frame); err != nil {
			log.Debug().Err(err).Msg("Display failed")
		}
	}

	result, msgs, err := p.Process(frame)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.seq++
	result.Seq = p.seq
	p.mu.Unlock()
	result.Time = p.now()

	var sendErrors uint64
	for _, msg := range msgs {
		if err := p.out.Send(msg); err != nil {
			sendErrors++
			log.Warn().Err(err).Str("msg", msg.String()).Msg("Failed to send control message")
		}
	}

	if p.settings.Print {
		if err := PrintDiagnostics(p.diag, result); err != nil {
			log.Debug().Err(err).Msg("Failed to print diagnostics")
		}
	}

	p.mu.Lock()
	p.counters.Frames++
	p.counters.Messages += uint64(len(msgs)) - sendErrors
	p.counters.SendErrors += sendErrors
	p.last = &result
	p.mu.Unlock()

	for _, o := range p.observers {
		o.Observe(result)
	}
	return nil
}

// Process computes the frame's statistics and control messages without
// sending anything. Messages come back in emission order.
func (p *Pipeline) Process(frame *analysis.Frame) (FrameResult, []midi.Message, error) {
	if err := frame.Validate(); err != nil {
		return FrameResult{}, nil, err
	}

	bgr, err := channelStats(frame)
	if err != nil {
		return FrameResult{}, nil, fmt.Errorf("bgr statistics: %w", err)
	}

	hsvFrame, err := p.converter.Convert(frame)
	if err != nil {
		return FrameResult{}, nil, fmt.Errorf("convert to hsv: %w", err)
	}
	hsv, err := channelStats(hsvFrame)
	if err != nil {
		return FrameResult{}, nil, fmt.Errorf("hsv statistics: %w", err)
	}

	result := FrameResult{
		Frame:  frame,
		Width:  frame.Width,
		Height: frame.Height,
		BGR:    bgr,
		HSV:    hsv,
	}

	ids := p.settings.Variant.Identifiers()
	result.Values = make([]ControlValue, 0, len(ids))
	msgs := make([]midi.Message, 0, len(ids))

	for _, id := range ids {
		lo, hi := id.Channel.Bounds()
		v := control.Normalize(value(result.Stats(id.Channel), id.Kind), lo, hi)
		n := p.settings.Mapping.Number(id)

		msg, err := control.Build(int(n), int(v))
		if err != nil {
			return FrameResult{}, nil, fmt.Errorf("build %s: %w", id, err)
		}

		msgs = append(msgs, msg)
		result.Values = append(result.Values, ControlValue{
			Identifier: id,
			Name:       id.String(),
			Number:     n,
			Value:      v,
		})
	}

	return result, msgs, nil
}

func channelStats(f *analysis.Frame) ([3]analysis.Statistics, error) {
	grids, err := analysis.Split(f)
	if err != nil {
		return [3]analysis.Statistics{}, err
	}
	return analysis.ExtractAll(grids)
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
