package overlay

import (
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
)

// Manager handles overlay widgets and rendering. Widgets render in the
// order they were added.
type Manager struct {
	widgets []Widget
	mu      sync.RWMutex
	enabled bool
}

// NewManager creates a new overlay manager
func NewManager() *Manager {
	return &Manager{enabled: true}
}

// NewDefaultManager creates a manager with a frame counter and the
// control bars.
func NewDefaultManager() *Manager {
	m := NewManager()
	text, _ := NewTextWidget("frame", map[string]interface{}{
		"text": "cameramidi {width}x{height} #{seq}",
		"x":    8,
		"y":    4,
	})
	bars, _ := NewControlsWidget("controls", map[string]interface{}{"y": 26})
	m.AddWidget(text)
	m.AddWidget(bars)
	return m
}

// AddWidget adds a widget to the overlay
func (m *Manager) AddWidget(widget Widget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(widget.ID()) >= 0 {
		return fmt.Errorf("widget with ID %s already exists", widget.ID())
	}

	m.widgets = append(m.widgets, widget)
	logger.WithComponent("overlay").Debug().
		Str("id", widget.ID()).
		Str("type", widget.Type()).
		Msg("Added widget")
	return nil
}

// RemoveWidget removes a widget from the overlay
func (m *Manager) RemoveWidget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("widget with ID %s not found", id)
	}

	m.widgets = append(m.widgets[:i], m.widgets[i+1:]...)
	return nil
}

// GetWidget retrieves a widget by ID
func (m *Manager) GetWidget(id string) (Widget, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexOf(id); i >= 0 {
		return m.widgets[i], true
	}
	return nil, false
}

// GetAllWidgets returns all widgets in render order
func (m *Manager) GetAllWidgets() []Widget {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Widget(nil), m.widgets...)
}

func (m *Manager) indexOf(id string) int {
	for i, w := range m.widgets {
		if w.ID() == id {
			return i
		}
	}
	return -1
}

// SetEnabled enables or disables the entire overlay
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// IsEnabled returns whether the overlay is enabled
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Update passes the latest frame result to every widget
func (m *Manager) Update(result pipeline.FrameResult) {
	for _, w := range m.GetAllWidgets() {
		w.Update(result)
	}
}

// Render renders all enabled widgets onto the provided image
func (m *Manager) Render(img *image.RGBA) error {
	if !m.IsEnabled() {
		return nil
	}

	for _, widget := range m.GetAllWidgets() {
		if !widget.IsEnabled() {
			continue
		}
		if err := widget.Render(img); err != nil {
			logger.WithComponent("overlay").Debug().
				Err(err).
				Str("id", widget.ID()).
				Msg("Failed to render widget")
		}
	}

	return nil
}

// CreateWidget creates a new widget instance from configuration
func (m *Manager) CreateWidget(widgetType string, id string, config map[string]interface{}) (Widget, error) {
	var widget Widget
	var err error

	switch widgetType {
	case "text":
		widget, err = NewTextWidget(id, config)
	case "controls":
		widget, err = NewControlsWidget(id, config)
	default:
		return nil, fmt.Errorf("unknown widget type: %s", widgetType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s widget: %w", widgetType, err)
	}

	return widget, nil
}

// LoadFromConfig creates and adds widgets from their configurations.
// Entries that fail are logged and skipped.
func (m *Manager) LoadFromConfig(configs []map[string]interface{}) {
	log := logger.WithComponent("overlay")

	for _, config := range configs {
		widgetType, _ := config["type"].(string)
		id, _ := config["id"].(string)
		if widgetType == "" || id == "" {
			log.Warn().Interface("config", config).Msg("Skipping widget without type or id")
			continue
		}

		widget, err := m.CreateWidget(widgetType, id, config)
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Failed to create widget")
			continue
		}

		if err := m.AddWidget(widget); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Failed to add widget")
		}
	}
}

// ExportConfig exports all widget configurations
func (m *Manager) ExportConfig() []map[string]interface{} {
	widgets := m.GetAllWidgets()
	configs := make([]map[string]interface{}, 0, len(widgets))
	for _, widget := range widgets {
		configs = append(configs, widget.GetConfig())
	}
	return configs
}

// Clear removes all widgets
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.widgets = nil
}
