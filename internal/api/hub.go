package api

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
)

// ControlsUpdate is pushed to websocket clients after every frame
type ControlsUpdate struct {
	Seq    uint64                  `json:"seq"`
	Time   time.Time               `json:"time"`
	Values []pipeline.ControlValue `json:"values"`
}

// Hub fans frame results out to subscribers. A subscriber that falls
// behind misses updates instead of slowing the pipeline.
type Hub struct {
	mu        sync.RWMutex
	listeners []chan ControlsUpdate
	last      *ControlsUpdate
	dropped   uint64
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{}
}

// Observe implements pipeline.Observer
func (h *Hub) Observe(result pipeline.FrameResult) {
	update := ControlsUpdate{
		Seq:    result.Seq,
		Time:   result.Time,
		Values: append([]pipeline.ControlValue(nil), result.Values...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = &update
	for _, listener := range h.listeners {
		select {
		case listener <- update:
		default:
			h.dropped++
		}
	}
}

// Subscribe adds a listener for control updates
func (h *Hub) Subscribe() chan ControlsUpdate {
	ch := make(chan ControlsUpdate, 10)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (h *Hub) Unsubscribe(ch chan ControlsUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Last returns the most recent update, if any
func (h *Hub) Last() (ControlsUpdate, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return ControlsUpdate{}, false
	}
	return *h.last, true
}

// Clients returns the number of subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Dropped returns how many updates were skipped for slow subscribers
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close unsubscribes everyone
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, listener := range h.listeners {
		close(listener)
	}
	h.listeners = nil
}
