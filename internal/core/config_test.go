package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Bus.Embedded {
		t.Error("default bus should be embedded")
	}
	if cfg.Bus.Port != 4222 {
		t.Errorf("default bus port = %d, want 4222", cfg.Bus.Port)
	}
	if cfg.Guardian.Weighting != "two_way" {
		t.Errorf("default weighting = %q, want two_way", cfg.Guardian.Weighting)
	}
	if cfg.Guardian.LearningRate != 0.1 {
		t.Errorf("default learning rate = %v, want 0.1", cfg.Guardian.LearningRate)
	}
	if cfg.Maze.ShiftBaseInterval != 30*time.Second {
		t.Errorf("default shift base = %v, want 30s", cfg.Maze.ShiftBaseInterval)
	}
	if cfg.Maze.ShiftMinInterval != 5*time.Second {
		t.Errorf("default shift floor = %v, want 5s", cfg.Maze.ShiftMinInterval)
	}
	if !cfg.Audit.Enabled {
		t.Error("audit should be enabled by default")
	}
	if !cfg.Alerts.Batch.Enabled {
		t.Error("alert batching should be enabled by default")
	}
}

func TestDefaultConfig_OneWayDefaults(t *testing.T) {
	ow := DefaultConfig().OneWay

	if ow.EntryVerificationLevels != 2 {
		t.Errorf("entry levels = %d, want 2", ow.EntryVerificationLevels)
	}
	if ow.ExitVerificationLevels != 5 {
		t.Errorf("exit levels = %d, want 5", ow.ExitVerificationLevels)
	}
	if ow.MaxEntryAttempts != 5 || ow.MaxExitAttempts != 3 {
		t.Errorf("attempt limits = %d/%d, want 5/3", ow.MaxEntryAttempts, ow.MaxExitAttempts)
	}
	if ow.EntryCooldown != 5*time.Second || ow.ExitCooldown != 30*time.Second {
		t.Errorf("cooldowns = %v/%v, want 5s/30s", ow.EntryCooldown, ow.ExitCooldown)
	}
	if !ow.RequireHardwareKey {
		t.Error("hardware key should be required by default")
	}
	if ow.RequireBiometric {
		t.Error("biometric should be optional by default")
	}
	if ow.TimeWindow != 5*time.Minute {
		t.Errorf("time window = %v, want 5m", ow.TimeWindow)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config file should not error, got: %v", err)
	}
	if cfg.Bus.Port != 4222 {
		t.Errorf("expected default port 4222, got %d", cfg.Bus.Port)
	}
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	yaml := `
guardian:
  weighting: four_way
  learning_rate: 0.25
oneway:
  max_exit_attempts: 7
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Guardian.Weighting != "four_way" {
		t.Errorf("weighting = %q, want four_way", cfg.Guardian.Weighting)
	}
	if cfg.Guardian.LearningRate != 0.25 {
		t.Errorf("learning rate = %v, want 0.25", cfg.Guardian.LearningRate)
	}
	if cfg.OneWay.MaxExitAttempts != 7 {
		t.Errorf("max exit attempts = %d, want 7", cfg.OneWay.MaxExitAttempts)
	}
	// Untouched fields keep defaults.
	if cfg.OneWay.MaxEntryAttempts != 5 {
		t.Errorf("max entry attempts = %d, want default 5", cfg.OneWay.MaxEntryAttempts)
	}
	if cfg.Bus.Port != 4222 {
		t.Errorf("bus port = %d, want default 4222", cfg.Bus.Port)
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel())
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Guardian.ConfidenceThreshold = 0.55
	cfg.Honeytoken.Seed = 42

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}
	out, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.Guardian.ConfidenceThreshold != 0.55 {
		t.Errorf("confidence threshold = %v, want 0.55", out.Guardian.ConfidenceThreshold)
	}
	if out.Honeytoken.Seed != 42 {
		t.Errorf("seed = %d, want 42", out.Honeytoken.Seed)
	}
}

func TestLogLevel_Normalized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "  DEBUG "
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
	cfg.Logging.Level = ""
	if cfg.LogLevel() != "info" {
		t.Errorf("empty level = %q, want info", cfg.LogLevel())
	}
}
