// Package config handles configuration persistence for the ENIP/CIP
// driver: the list of PLCs to define at startup and their default poll
// rate, loaded from and saved to a YAML file.
package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// PLCConfig describes one controller to define and scan at startup.
type PLCConfig struct {
	Name    string        `yaml:"name"`
	Address string        `yaml:"address"`
	Slot    byte          `yaml:"slot"`
	Period  time.Duration `yaml:"period"`
	Enabled bool          `yaml:"enabled"`
}

// Config holds the complete application configuration.
type Config struct {
	DefaultRate time.Duration `yaml:"default_rate"`
	Verbosity   int           `yaml:"verbosity"`
	PLCs        []PLCConfig   `yaml:"plcs"`

	// dataMu protects all config fields against concurrent access. Callers
	// that modify config should Lock(), modify, then call UnlockAndSave().
	// Save() acquires the lock internally for callers that don't hold it.
	dataMu sync.Mutex `yaml:"-"`
}

// DefaultConfig returns a Config with no PLCs defined and a 1-second
// default scan rate.
func DefaultConfig() *Config {
	return &Config{
		DefaultRate: time.Second,
		PLCs:        []PLCConfig{},
	}
}

// DefaultPath returns the default configuration file path (~/.ethip/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".ethip", "config.yaml")
}

// Load reads configuration from a YAML file, returning defaults if the
// file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Lock acquires the config data mutex for exclusive access. Use this
// before modifying config fields, then call UnlockAndSave.
func (c *Config) Lock() { c.dataMu.Lock() }

// Unlock releases the config data mutex without saving. Prefer
// UnlockAndSave when modifications were made.
func (c *Config) Unlock() { c.dataMu.Unlock() }

// Save acquires the lock, marshals, and writes. Use this when the caller
// does not already hold the lock.
func (c *Config) Save(path string) error {
	c.dataMu.Lock()
	return c.saveLocked(path)
}

// UnlockAndSave marshals, releases the lock, and writes. The caller must
// already hold the lock via Lock().
func (c *Config) UnlockAndSave(path string) error {
	return c.saveLocked(path)
}

// saveLocked marshals config (lock must be held), unlocks, then writes.
func (c *Config) saveLocked(path string) error {
	data, err := yaml.Marshal(c)
	c.dataMu.Unlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// FindPLC returns the PLC config with the given name, or nil if not found.
func (c *Config) FindPLC(name string) *PLCConfig {
	for i := range c.PLCs {
		if c.PLCs[i].Name == name {
			return &c.PLCs[i]
		}
	}
	return nil
}

// AddPLC appends a new PLC configuration.
func (c *Config) AddPLC(plc PLCConfig) {
	c.PLCs = append(c.PLCs, plc)
}

// RemovePLC removes a PLC config by name.
func (c *Config) RemovePLC(name string) bool {
	for i, p := range c.PLCs {
		if p.Name == name {
			c.PLCs = append(c.PLCs[:i], c.PLCs[i+1:]...)
			return true
		}
	}
	return false
}

// UpdatePLC replaces an existing PLC configuration by name.
func (c *Config) UpdatePLC(name string, updated PLCConfig) bool {
	for i, p := range c.PLCs {
		if p.Name == name {
			c.PLCs[i] = updated
			return true
		}
	}
	return false
}
