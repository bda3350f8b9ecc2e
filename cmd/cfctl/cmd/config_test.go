package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadFleetConfig tests YAML fleet file parsing
func TestLoadFleetConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
broadcastUri: radio://0/80/2M/FFE7E7E7E7
vehicles:
  - name: cf1
    uri: radio://0/80/2M/E7E7E7E701
    id: 1
  - name: cf2
    uri: radio://0/80/2M/E7E7E7E702
    id: 2
logBlocks:
  - topic: pose
    frequency: 10
    variables: [stab.roll, stab.pitch]
storage:
  database: flights.db
`)

	cfg, err := LoadFleetConfig(path)
	if err != nil {
		t.Fatalf("LoadFleetConfig() error = %v", err)
	}
	if cfg.Settings.LogLevel != "debug" {
		t.Errorf("logLevel = %q, want debug", cfg.Settings.LogLevel)
	}
	if len(cfg.Vehicles) != 2 {
		t.Fatalf("vehicles = %d, want 2", len(cfg.Vehicles))
	}
	if v := cfg.VehicleByName("cf2"); v == nil || v.ID != 2 {
		t.Errorf("VehicleByName(cf2) = %+v, want id 2", v)
	}
	if len(cfg.LogBlocks) != 1 || cfg.LogBlocks[0].Frequency != 10 {
		t.Errorf("logBlocks = %+v", cfg.LogBlocks)
	}
	if cfg.Storage.Database != "flights.db" {
		t.Errorf("database = %q, want flights.db", cfg.Storage.Database)
	}
}

// TestLoadFleetConfigDefaults tests that omitted sections keep defaults
func TestLoadFleetConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
vehicles:
  - name: cf1
    uri: usb://0
`)
	cfg, err := LoadFleetConfig(path)
	if err != nil {
		t.Fatalf("LoadFleetConfig() error = %v", err)
	}
	if cfg.Settings.LogLevel != "info" {
		t.Errorf("logLevel = %q, want info default", cfg.Settings.LogLevel)
	}
	if cfg.Storage.Database != "telemetry.db" {
		t.Errorf("database = %q, want telemetry.db default", cfg.Storage.Database)
	}
}

// TestLoadFleetConfigValidation tests rejection of incomplete entries
func TestLoadFleetConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "Vehicle without uri",
			content: `
vehicles:
  - name: cf1
`,
		},
		{
			name: "Log block without variables",
			content: `
logBlocks:
  - topic: pose
    frequency: 10
`,
		},
		{
			name: "Log block with zero frequency",
			content: `
logBlocks:
  - topic: pose
    frequency: 0
    variables: [stab.roll]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFleetConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("LoadFleetConfig() succeeded, want error")
			}
		})
	}
}
