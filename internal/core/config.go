package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire VaultMaze configuration.
type Config struct {
	Bus        BusConfig        `yaml:"bus"`
	Alerts     AlertConfig      `yaml:"alerts"`
	Guardian   GuardianConfig   `yaml:"guardian"`
	Maze       MazeConfig       `yaml:"maze"`
	Honeytoken HoneytokenConfig `yaml:"honeytoken"`
	OneWay     OneWayConfig     `yaml:"oneway"`
	Audit      AuditConfig      `yaml:"audit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BusConfig holds NATS event bus settings.
type BusConfig struct {
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	DataDir  string `yaml:"data_dir"`
	Port     int    `yaml:"port"`
}

// AlertConfig holds alert pipeline settings.
type AlertConfig struct {
	MaxStore      int                `yaml:"max_store"`
	WebhookURLs   []string           `yaml:"webhook_urls"`
	EnableConsole bool               `yaml:"enable_console"`
	Batch         AlertBatcherConfig `yaml:"batch"`
	Escalation    EscalationConfig   `yaml:"escalation"`
}

// GuardianConfig holds threat scoring settings.
type GuardianConfig struct {
	// Weighting selects how the per-attack score is blended:
	// "two_way" combines the neural and pattern components,
	// "four_way" adds anomaly and behavioral components.
	Weighting           string  `yaml:"weighting"`
	LearningRate        float64 `yaml:"learning_rate"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxSources          int     `yaml:"max_sources"`
	AnomalyWindow       int     `yaml:"anomaly_window"`
	AnomalyThreshold    float64 `yaml:"anomaly_threshold"`
}

// MazeConfig holds maze engine and scheduler settings.
type MazeConfig struct {
	ShiftBaseInterval time.Duration `yaml:"shift_base_interval"`
	ShiftMinInterval  time.Duration `yaml:"shift_min_interval"`
}

// HoneytokenConfig holds honeypot and decoy generation settings.
type HoneytokenConfig struct {
	// Seed fixes the fake-data randomness source. Zero means time-seeded.
	Seed int64 `yaml:"seed"`
}

// OneWayConfig holds the asymmetric entry/exit verification settings.
type OneWayConfig struct {
	EntryVerificationLevels int           `yaml:"entry_verification_levels"`
	ExitVerificationLevels  int           `yaml:"exit_verification_levels"`
	MaxEntryAttempts        int           `yaml:"max_entry_attempts"`
	MaxExitAttempts         int           `yaml:"max_exit_attempts"`
	EntryCooldown           time.Duration `yaml:"entry_cooldown"`
	ExitCooldown            time.Duration `yaml:"exit_cooldown"`
	RequireBiometric        bool          `yaml:"require_biometric"`
	RequireHardwareKey      bool          `yaml:"require_hardware_key"`
	TimeWindow              time.Duration `yaml:"time_window"`
}

// AuditConfig holds the SQLite audit store settings.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults — zero-config works out of the box.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			DataDir:  "./data/nats",
			Port:     4222,
		},
		Alerts: AlertConfig{
			MaxStore:      10000,
			EnableConsole: true,
			Batch:         DefaultAlertBatcherConfig(),
			Escalation:    DefaultEscalationConfig(),
		},
		Guardian: GuardianConfig{
			Weighting:           "two_way",
			LearningRate:        0.1,
			ConfidenceThreshold: 0.7,
			MaxSources:          10000,
			AnomalyWindow:       20,
			AnomalyThreshold:    2.5,
		},
		Maze: MazeConfig{
			ShiftBaseInterval: 30 * time.Second,
			ShiftMinInterval:  5 * time.Second,
		},
		OneWay: OneWayConfig{
			EntryVerificationLevels: 2,
			ExitVerificationLevels:  5,
			MaxEntryAttempts:        5,
			MaxExitAttempts:         3,
			EntryCooldown:           5 * time.Second,
			ExitCooldown:            30 * time.Second,
			RequireBiometric:        false,
			RequireHardwareKey:      true,
			TimeWindow:              5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "./data/vaultmaze.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LogLevel returns the normalized log level, defaulting to info.
func (c *Config) LogLevel() string {
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		return "info"
	}
	return level
}
