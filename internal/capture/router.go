package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/analysis"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
)

// Router starts the first usable capturer from an ordered candidate list
// and delegates Acquire to it.
type Router struct {
	candidates []Capturer
	active     Capturer
	mu         sync.RWMutex
	started    bool
}

// NewRouter creates a new capture router. Candidates are tried in order.
func NewRouter(candidates ...Capturer) *Router {
	return &Router{candidates: candidates}
}

// Start initializes the first candidate that is available and starts cleanly
func (r *Router) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	log := logger.WithComponent("capture-router")

	for _, c := range r.candidates {
		if c == nil {
			continue
		}
		if !c.IsAvailable() {
			log.Info().Str("backend", c.Name()).Msg("Capture backend not available")
			continue
		}
		if err := c.Start(); err != nil {
			log.Warn().Err(err).Str("backend", c.Name()).Msg("Failed to start capture backend")
			continue
		}

		r.active = c
		r.started = true
		log.Info().Str("backend", c.Name()).Msg("Capture backend initialized")
		return nil
	}

	return fmt.Errorf("%w (tried %d)", ErrNoBackend, len(r.candidates))
}

// Stop stops the active capturer
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.active != nil {
		err = r.active.Stop()
		r.active = nil
	}

	r.started = false
	return err
}

// Acquire returns the next frame from the active capturer
func (r *Router) Acquire(ctx context.Context) (*analysis.Frame, error) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()

	if active == nil {
		return nil, ErrNotStarted
	}
	return active.Acquire(ctx)
}

// Name returns the active backend's name, or "router" before Start
func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == nil {
		return "router"
	}
	return r.active.Name()
}

// IsAvailable reports whether any candidate can be used
func (r *Router) IsAvailable() bool {
	for _, c := range r.candidates {
		if c != nil && c.IsAvailable() {
			return true
		}
	}
	return false
}

// Active returns the capturer chosen by Start
func (r *Router) Active() Capturer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Order returns the backend names to try for a configured backend: the
// configured one first, then the rest of Backends except the synthetic
// pattern source, which is only used when asked for explicitly.
func Order(configured string) []string {
	order := []string{configured}
	if configured == BackendPattern {
		return order
	}
	for _, b := range Backends {
		if b != configured && b != BackendPattern {
			order = append(order, b)
		}
	}
	return order
}
