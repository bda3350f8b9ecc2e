package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FleetConfig describes a set of vehicles and what to record from them.
type FleetConfig struct {
	Settings     Settings         `yaml:"settings"`
	BroadcastURI string           `yaml:"broadcastUri"`
	Vehicles     []VehicleConfig  `yaml:"vehicles"`
	LogBlocks    []LogBlockConfig `yaml:"logBlocks"`
	Storage      StorageConfig    `yaml:"storage"`
}

// Settings holds fleet-wide defaults.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// VehicleConfig identifies one vehicle in the fleet.
type VehicleConfig struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
	ID   uint8  `yaml:"id"`
}

// LogBlockConfig describes one onboard log block to create when recording.
type LogBlockConfig struct {
	Topic     string   `yaml:"topic"`
	Frequency int      `yaml:"frequency"` // Hz
	Variables []string `yaml:"variables"`
}

// StorageConfig points at the local telemetry database.
type StorageConfig struct {
	Database string `yaml:"database"`
}

// DefaultFleetConfig returns the config used when no file is given.
func DefaultFleetConfig() *FleetConfig {
	return &FleetConfig{
		Settings: Settings{LogLevel: "info"},
		Storage:  StorageConfig{Database: "telemetry.db"},
	}
}

// LoadFleetConfig reads and validates a YAML fleet file.
func LoadFleetConfig(path string) (*FleetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultFleetConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, v := range cfg.Vehicles {
		if v.URI == "" {
			return nil, fmt.Errorf("vehicle %d (%q) has no uri", i, v.Name)
		}
	}
	for _, b := range cfg.LogBlocks {
		if b.Frequency <= 0 {
			return nil, fmt.Errorf("log block %q: frequency must be positive", b.Topic)
		}
		if len(b.Variables) == 0 {
			return nil, fmt.Errorf("log block %q: no variables", b.Topic)
		}
	}
	return cfg, nil
}

// VehicleByName finds a configured vehicle, or nil.
func (c *FleetConfig) VehicleByName(name string) *VehicleConfig {
	for i := range c.Vehicles {
		if c.Vehicles[i].Name == name {
			return &c.Vehicles[i]
		}
	}
	return nil
}
