package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanchriswhite/cameramidi/internal/capture"
	"github.com/bryanchriswhite/cameramidi/internal/colorspace"
	"github.com/bryanchriswhite/cameramidi/internal/control"
	"github.com/bryanchriswhite/cameramidi/internal/display"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/bryanchriswhite/cameramidi/internal/pipeline"
)

// ErrInvalidControlList is returned for a control-number list of the wrong
// length or with entries outside 0-127.
var ErrInvalidControlList = control.ErrInvalidControlList

// ErrInvalidConfig wraps every other validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	Capture  CaptureConfig  `json:"capture" yaml:"capture" mapstructure:"capture"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	MIDI     MIDIConfig     `json:"midi" yaml:"midi" mapstructure:"midi"`
	Display  DisplayConfig  `json:"display" yaml:"display" mapstructure:"display"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Stream   StreamConfig   `json:"stream" yaml:"stream" mapstructure:"stream"`
	Publish  PublishConfig  `json:"publish" yaml:"publish" mapstructure:"publish"`
	Record   RecordConfig   `json:"record" yaml:"record" mapstructure:"record"`
	Overlay  OverlayConfig  `json:"overlay" yaml:"overlay" mapstructure:"overlay"`
	LogLevel string         `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// CaptureConfig selects and tunes the frame source
type CaptureConfig struct {
	Backend     string         `json:"backend" yaml:"backend" mapstructure:"backend"`
	DeviceIndex int            `json:"device_index" yaml:"device_index" mapstructure:"device_index"`
	Zoom        float64        `json:"zoom" yaml:"zoom" mapstructure:"zoom"`
	Width       int            `json:"width" yaml:"width" mapstructure:"width"`
	Height      int            `json:"height" yaml:"height" mapstructure:"height"`
	Region      capture.Region `json:"region" yaml:"region" mapstructure:"region"`
	FollowFocus bool           `json:"follow_focus" yaml:"follow_focus" mapstructure:"follow_focus"`
}

// PipelineConfig holds the per-frame loop settings
type PipelineConfig struct {
	Variant   string `json:"variant" yaml:"variant" mapstructure:"variant"`
	Converter string `json:"converter" yaml:"converter" mapstructure:"converter"`
	PacingMS  int    `json:"pacing_ms" yaml:"pacing_ms" mapstructure:"pacing_ms"`
	Print     bool   `json:"print" yaml:"print" mapstructure:"print"`
}

// MIDIConfig selects the output port and control numbers
type MIDIConfig struct {
	PortName        string `json:"port_name" yaml:"port_name" mapstructure:"port_name"`
	VirtualPortName string `json:"virtual_port_name" yaml:"virtual_port_name" mapstructure:"virtual_port_name"`
	ControlNumbers  []int  `json:"control_numbers" yaml:"control_numbers" mapstructure:"control_numbers"`
}

// DisplayConfig represents the preview window configuration
type DisplayConfig struct {
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`
	Width   int    `json:"width" yaml:"width" mapstructure:"width"`
	Height  int    `json:"height" yaml:"height" mapstructure:"height"`
}

// ServerConfig represents the monitor server configuration
type ServerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" yaml:"port" mapstructure:"port"`
}

// StreamConfig represents the MJPEG preview configuration
type StreamConfig struct {
	FPS     int `json:"fps" yaml:"fps" mapstructure:"fps"`
	Width   int `json:"width" yaml:"width" mapstructure:"width"`
	Height  int `json:"height" yaml:"height" mapstructure:"height"`
	Quality int `json:"quality" yaml:"quality" mapstructure:"quality"`
}

// PublishConfig enables the ZeroMQ bridge when Endpoint is set
type PublishConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
}

// RecordConfig enables the statistics recorder when Dir is set
type RecordConfig struct {
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// OverlayConfig represents overlay configuration
type OverlayConfig struct {
	Enabled bool                     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Widgets []map[string]interface{} `json:"widgets" yaml:"widgets" mapstructure:"widgets"`
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Capture: CaptureConfig{
			Backend: capture.BackendOpenCV,
			Zoom:    3.0,
		},
		Pipeline: PipelineConfig{
			Variant:   control.Full.String(),
			Converter: colorspace.ConverterOpenCV,
			PacingMS:  int(pipeline.DefaultPacing / time.Millisecond),
			Print:     true,
		},
		MIDI: MIDIConfig{
			VirtualPortName: "cameramidi Virtual MIDI Port",
			ControlNumbers:  []int{},
		},
		Display: DisplayConfig{
			Backend: display.BackendOpenCV,
			Width:   640,
			Height:  480,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Stream: StreamConfig{
			FPS:     15,
			Quality: 80,
		},
		Overlay: OverlayConfig{
			Enabled: true,
			Widgets: []map[string]interface{}{},
		},
		LogLevel: "info",
	}
}

// Validate checks every field the run command depends on
func (c *Config) Validate() error {
	if c.Capture.DeviceIndex < 0 {
		return fmt.Errorf("%w: capture.device_index must not be negative, got %d", ErrInvalidConfig, c.Capture.DeviceIndex)
	}
	if c.Capture.Zoom < 1 {
		return fmt.Errorf("%w: capture.zoom must be at least 1, got %g", ErrInvalidConfig, c.Capture.Zoom)
	}
	if !oneOf(c.Capture.Backend, capture.Backends...) {
		return fmt.Errorf("%w: unknown capture.backend %q (use %s)", ErrInvalidConfig,
			c.Capture.Backend, strings.Join(capture.Backends, ", "))
	}
	if !oneOf(c.Display.Backend, display.BackendOpenCV, display.BackendX11, display.BackendNone) {
		return fmt.Errorf("%w: unknown display.backend %q (use opencv, x11 or none)", ErrInvalidConfig, c.Display.Backend)
	}
	if !oneOf(c.Pipeline.Converter, colorspace.ConverterOpenCV, colorspace.ConverterReference) {
		return fmt.Errorf("%w: unknown pipeline.converter %q (use opencv or reference)", ErrInvalidConfig, c.Pipeline.Converter)
	}
	if c.Pipeline.PacingMS < 0 {
		return fmt.Errorf("%w: pipeline.pacing_ms must not be negative", ErrInvalidConfig)
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.LogLevel != "" && !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.Stream.FPS < 0 {
		return fmt.Errorf("%w: stream.fps must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// Settings builds the pipeline settings from the configuration
func (c *Config) Settings() (pipeline.Settings, error) {
	variant, err := control.ParseVariant(c.Pipeline.Variant)
	if err != nil {
		return pipeline.Settings{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	mapping, err := control.NewMapping(variant, c.MIDI.ControlNumbers)
	if err != nil {
		return pipeline.Settings{}, err
	}
	return pipeline.Settings{
		Variant: variant,
		Mapping: mapping,
		Pacing:  time.Duration(c.Pipeline.PacingMS) * time.Millisecond,
		Print:   c.Pipeline.Print,
	}, nil
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
