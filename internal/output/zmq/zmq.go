// Package zmq publishes control messages on a ZeroMQ PUB socket, one
// message per ZMQ frame.
package zmq

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/output"
	"github.com/pebbe/zmq4"
	"gitlab.com/gomidi/midi/v2"
)

// Publisher binds a PUB socket at an endpoint such as "tcp://*:5556"
type Publisher struct {
	endpoint string
	socket   *zmq4.Socket
	mu       sync.Mutex
	running  bool
	sent     uint64
}

// NewPublisher creates a publisher for endpoint
func NewPublisher(endpoint string) *Publisher {
	return &Publisher{endpoint: endpoint}
}

// Start creates and binds the socket
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("publisher already running")
	}

	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return fmt.Errorf("failed to create PUB socket: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return fmt.Errorf("failed to set linger: %w", err)
	}
	if err := socket.Bind(p.endpoint); err != nil {
		_ = socket.Close()
		return fmt.Errorf("failed to bind %s: %w", p.endpoint, err)
	}

	p.socket = socket
	p.running = true
	p.sent = 0

	logger.WithComponent("zmq").Info().Str("endpoint", p.endpoint).Msg("Publisher bound")
	return nil
}

// Stop closes the socket
func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	p.running = false
	err := p.socket.Close()
	p.socket = nil

	logger.WithComponent("zmq").Info().Uint64("sent", p.sent).Msg("Publisher closed")
	return err
}

// Send publishes the raw message bytes. PUB sockets never block; with no
// subscriber the message is dropped.
func (p *Publisher) Send(msg midi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return output.ErrNotRunning
	}
	if _, err := p.socket.SendBytes([]byte(msg), zmq4.DONTWAIT); err != nil {
		return fmt.Errorf("zmq send: %w", err)
	}
	p.sent++
	return nil
}

// Name returns the output type name
func (p *Publisher) Name() string {
	return "zmq:" + p.endpoint
}

// IsRunning returns true if the socket is bound
func (p *Publisher) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
