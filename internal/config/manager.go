package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/cameramidi/internal/control"
	"github.com/bryanchriswhite/cameramidi/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. CAMERAMIDI_CAPTURE_DEVICE_INDEX
const EnvPrefix = "CAMERAMIDI"

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/cameramidi/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "cameramidi", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing
// file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Defaults())

	m := &Manager{configPath: path, v: v}
	log := logger.WithComponent("config")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Info().
			Str("path", path).
			Msg("Config file not found, creating new config")
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	log.Info().
		Str("path", path).
		Msg("Config loaded")

	return m, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("capture.backend", d.Capture.Backend)
	v.SetDefault("capture.device_index", d.Capture.DeviceIndex)
	v.SetDefault("capture.zoom", d.Capture.Zoom)
	v.SetDefault("capture.width", d.Capture.Width)
	v.SetDefault("capture.height", d.Capture.Height)
	v.SetDefault("capture.region.x", d.Capture.Region.X)
	v.SetDefault("capture.region.y", d.Capture.Region.Y)
	v.SetDefault("capture.region.width", d.Capture.Region.Width)
	v.SetDefault("capture.region.height", d.Capture.Region.Height)
	v.SetDefault("capture.follow_focus", d.Capture.FollowFocus)

	v.SetDefault("pipeline.variant", d.Pipeline.Variant)
	v.SetDefault("pipeline.converter", d.Pipeline.Converter)
	v.SetDefault("pipeline.pacing_ms", d.Pipeline.PacingMS)
	v.SetDefault("pipeline.print", d.Pipeline.Print)

	v.SetDefault("midi.port_name", d.MIDI.PortName)
	v.SetDefault("midi.virtual_port_name", d.MIDI.VirtualPortName)
	v.SetDefault("midi.control_numbers", d.MIDI.ControlNumbers)

	v.SetDefault("display.backend", d.Display.Backend)
	v.SetDefault("display.width", d.Display.Width)
	v.SetDefault("display.height", d.Display.Height)

	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("stream.fps", d.Stream.FPS)
	v.SetDefault("stream.width", d.Stream.Width)
	v.SetDefault("stream.height", d.Stream.Height)
	v.SetDefault("stream.quality", d.Stream.Quality)

	v.SetDefault("publish.endpoint", d.Publish.Endpoint)
	v.SetDefault("record.dir", d.Record.Dir)

	v.SetDefault("overlay.enabled", d.Overlay.Enabled)
	v.SetDefault("overlay.widgets", d.Overlay.Widgets)

	v.SetDefault("log_level", d.LogLevel)
}

// Get decodes the merged file, environment, flag and default values
func (m *Manager) Get() (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.decode()
}

func (m *Manager) decode() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.MIDI.ControlNumbers == nil {
		cfg.MIDI.ControlNumbers = []int{}
	}
	if cfg.Overlay.Widgets == nil {
		cfg.Overlay.Widgets = []map[string]interface{}{}
	}
	return &cfg, nil
}

// Save writes the current configuration to disk as YAML
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, err := m.decode()
	if err != nil {
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SetValue parses value according to the key's current type, applies it
// and validates the result. An invalid value leaves the configuration
// unchanged.
func (m *Manager) SetValue(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = strings.ToLower(key)
	if !m.v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}
	old := m.v.Get(key)

	parsed, err := parseValue(key, old, value)
	if err != nil {
		return err
	}
	m.v.Set(key, parsed)

	cfg, err := m.decode()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		m.v.Set(key, old)
		return err
	}
	return nil
}

func parseValue(key string, current interface{}, value string) (interface{}, error) {
	if key == "log_level" {
		if !logger.ValidLevel(value) {
			return nil, fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		return value, nil
	}
	if key == "midi.control_numbers" {
		return control.ParseList(value)
	}

	switch current.(type) {
	case int, int64:
		if n, err := strconv.Atoi(value); err == nil {
			return n, nil
		}
		if key != "capture.zoom" {
			return nil, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		// a whole zoom factor reads back from YAML as an int
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		return f, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		return f, nil
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean for %s: %s (use: true or false)", key, value)
		}
		return b, nil
	case string:
		return value, nil
	default:
		return nil, fmt.Errorf("%s cannot be set from the command line", key)
	}
}

// GetViper exposes the underlying viper instance for flag binding
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// GetConfigPath returns the config file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the directory holding the config file
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
