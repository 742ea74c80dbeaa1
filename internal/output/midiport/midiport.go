// Package midiport sends control messages to a MIDI output port through
// the rtmidi driver.
package midiport

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/output"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// DefaultVirtualName is the port name advertised when no output exists
const DefaultVirtualName = "cameramidi Virtual MIDI Port"

// Config selects the port to open
type Config struct {
	// PortName picks the first output whose name contains it,
	// case-insensitively. Empty picks the first output.
	PortName string

	// VirtualName names the virtual port created when no output matches
	VirtualName string
}

// Output writes to a MIDI port
type Output struct {
	config  Config
	drv     *rtmididrv.Driver
	port    drivers.Out
	send    func(midi.Message) error
	virtual bool
	mu      sync.Mutex
	running bool
}

// New creates a MIDI port output
func New(config Config) *Output {
	if config.VirtualName == "" {
		config.VirtualName = DefaultVirtualName
	}
	return &Output{config: config}
}

// Start opens the selected port, or a virtual one
func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("MIDI output already running")
	}

	log := logger.WithComponent("midi")

	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("failed to init rtmidi driver: %w", err)
	}

	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return fmt.Errorf("failed to list MIDI outputs: %w", err)
	}

	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	log.Debug().Strs("outputs", names).Msg("MIDI outputs enumerated")

	var port drivers.Out
	if i, ok := output.PickPort(names, o.config.PortName); ok {
		port = outs[i]
		if err := port.Open(); err != nil {
			drv.Close()
			return fmt.Errorf("failed to open MIDI port %q: %w", names[i], err)
		}
		log.Info().Str("port", names[i]).Msg("MIDI output opened")
	} else {
		port, err = drv.OpenVirtualOut(o.config.VirtualName)
		if err != nil {
			drv.Close()
			return fmt.Errorf("failed to open virtual MIDI port: %w", err)
		}
		o.virtual = true
		log.Info().Str("port", o.config.VirtualName).Msg("No MIDI output matched, opened virtual port")
	}

	send, err := midi.SendTo(port)
	if err != nil {
		port.Close()
		drv.Close()
		return fmt.Errorf("failed to bind MIDI port: %w", err)
	}

	o.drv = drv
	o.port = port
	o.send = send
	o.running = true
	return nil
}

// Stop closes the port and the driver
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return nil
	}

	o.running = false
	if o.port != nil {
		o.port.Close()
		o.port = nil
	}
	if o.drv != nil {
		o.drv.Close()
		o.drv = nil
	}

	logger.WithComponent("midi").Info().Msg("MIDI output closed")
	return nil
}

// Send writes one message to the port
func (o *Output) Send(msg midi.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return output.ErrNotRunning
	}
	return o.send(msg)
}

// Name returns the open port's name
func (o *Output) Name() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.port == nil {
		return "midi"
	}
	return "midi:" + o.port.String()
}

// IsRunning returns true if the port is open
func (o *Output) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Virtual reports whether Start fell back to a virtual port
func (o *Output) Virtual() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.virtual
}

// List returns the names of the available MIDI output ports
func List() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("failed to init rtmidi driver: %w", err)
	}
	defer drv.Close()

	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("failed to list MIDI outputs: %w", err)
	}

	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	return names, nil
}
