package output

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// ErrNotRunning is returned by Send before Start or after Stop
var ErrNotRunning = errors.New("output not running")

// Output defines the interface for control-message sinks.
// This allows us to swap between different output methods:
// - a hardware or virtual MIDI port
// - a ZeroMQ publisher
// - an in-memory buffer
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// Send delivers one control message. Messages must reach the sink in
	// the order Send is called.
	Send(msg midi.Message) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Fanout sends every message to each of its outputs in order
type Fanout struct {
	outputs []Output
}

// NewFanout creates a fan-out over the given outputs
func NewFanout(outputs ...Output) *Fanout {
	return &Fanout{outputs: outputs}
}

// Start starts every output, stopping the already started ones on failure
func (f *Fanout) Start() error {
	for i, o := range f.outputs {
		if err := o.Start(); err != nil {
			for _, started := range f.outputs[:i] {
				started.Stop()
			}
			return fmt.Errorf("failed to start %s: %w", o.Name(), err)
		}
	}
	return nil
}

// Stop stops every output and joins their errors
func (f *Fanout) Stop() error {
	var errs []error
	for _, o := range f.outputs {
		if err := o.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Send delivers msg to every output. Every output is attempted even when
// an earlier one fails.
func (f *Fanout) Send(msg midi.Message) error {
	var errs []error
	for _, o := range f.outputs {
		if err := o.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Name lists the wrapped outputs
func (f *Fanout) Name() string {
	name := "fanout("
	for i, o := range f.outputs {
		if i > 0 {
			name += ", "
		}
		name += o.Name()
	}
	return name + ")"
}

// IsRunning returns true when every output is running
func (f *Fanout) IsRunning() bool {
	for _, o := range f.outputs {
		if !o.IsRunning() {
			return false
		}
	}
	return len(f.outputs) > 0
}

// Memory keeps every message it is sent. It backs dry runs and tests.
type Memory struct {
	mu       sync.Mutex
	running  bool
	messages []midi.Message
}

// NewMemory creates an in-memory output
func NewMemory() *Memory {
	return &Memory{}
}

// Start marks the output running
func (m *Memory) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

// Stop marks the output stopped and keeps the buffered messages
func (m *Memory) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Send appends a copy of msg
func (m *Memory) Send(msg midi.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrNotRunning
	}
	m.messages = append(m.messages, append(midi.Message(nil), msg...))
	return nil
}

// Messages returns a copy of everything sent so far
func (m *Memory) Messages() []midi.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]midi.Message(nil), m.messages...)
}

// Reset drops the buffered messages
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// Name returns the output type name
func (m *Memory) Name() string {
	return "memory"
}

// IsRunning returns true if the output is active
func (m *Memory) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// PickPort returns the index of the first name containing want, ignoring
// case. An empty want picks the first name.
func PickPort(names []string, want string) (int, bool) {
	if len(names) == 0 {
		return 0, false
	}
	if want == "" {
		return 0, true
	}
	want = strings.ToLower(want)
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), want) {
			return i, true
		}
	}
	return 0, false
}
