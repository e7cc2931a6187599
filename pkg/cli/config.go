// Package cli loads the application configuration shared by command-line
// front ends: which transport backend to use, where the lamp's control
// endpoint lives, the session timing knobs, and where persisted lamp state
// is kept.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halolight/lamp-command/pkg/connector/ble"
	"github.com/halolight/lamp-command/pkg/connector/ble/goble"
	"github.com/halolight/lamp-command/pkg/connector/ble/tinygo"
	"github.com/halolight/lamp-command/pkg/session"
	"github.com/halolight/lamp-command/pkg/state"
)

// ConfigPathEnv overrides the config file location when set.
const ConfigPathEnv = "LAMP_CONTROL_CONFIG"

// Backend names accepted in configuration.
const (
	BackendTinygo = "tinygo"
	BackendGoble  = "goble"
)

type Config struct {
	// Backend selects the BLE transport implementation.
	Backend string `yaml:"backend"`

	// AdapterID selects a specific HCI adapter where supported ("" = default).
	AdapterID string `yaml:"adapter_id"`

	// ServiceUUID and CharacteristicUUID override the lamp's control
	// endpoint for clone devices that relocate it.
	ServiceUUID        string `yaml:"service_uuid"`
	CharacteristicUUID string `yaml:"characteristic_uuid"`

	// StepTimeoutSeconds bounds each connect-pipeline wait.
	StepTimeoutSeconds int `yaml:"step_timeout_seconds"`

	// WriteRepetitions and WriteSpacingMS configure best-effort repeated
	// transmission.
	WriteRepetitions int `yaml:"write_repetitions"`
	WriteSpacingMS   int `yaml:"write_spacing_ms"`

	// StatePath locates the persisted lamp state file.
	StatePath string `yaml:"state_path"`
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		Backend:            defaultBackend,
		ServiceUUID:        ble.LampServiceUUID,
		CharacteristicUUID: ble.LampCharacteristicUUID,
		StepTimeoutSeconds: 12,
		WriteRepetitions:   3,
		WriteSpacingMS:     500,
		StatePath:          filepath.Join(DefaultConfigDir(), "state.json"),
	}
}

// DefaultConfigDir returns the directory holding the config and state files.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lamp-control")
}

// DefaultConfigPath returns the config file path, honoring ConfigPathEnv.
func DefaultConfigPath() string {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path
	}
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load reads the config file at path, filling unset fields with defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cli: invalid config %s: %s", path, err)
	}
	return cfg, nil
}

// Save writes the config file, creating the parent directory if needed.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// SessionOptions converts the config to session options.
func (c Config) SessionOptions() session.Options {
	return session.Options{
		ServiceUUID:        c.ServiceUUID,
		CharacteristicUUID: c.CharacteristicUUID,
		StepTimeout:        time.Duration(c.StepTimeoutSeconds) * time.Second,
		WriteRepetitions:   c.WriteRepetitions,
		WriteSpacing:       time.Duration(c.WriteSpacingMS) * time.Millisecond,
	}
}

// NewAdapter initializes the configured transport backend.
func (c Config) NewAdapter() (ble.Adapter, error) {
	switch c.Backend {
	case BackendGoble:
		return goble.NewAdapter(c.AdapterID)
	case BackendTinygo, "":
		return tinygo.NewAdapter(c.AdapterID)
	default:
		return nil, fmt.Errorf("cli: unknown backend %q (expected %s or %s)", c.Backend, BackendTinygo, BackendGoble)
	}
}

// OpenStore opens the persisted lamp state store.
func (c Config) OpenStore() *state.FileStore {
	return state.NewFileStore(c.StatePath)
}
