// Package config loads service configuration from defaults, an optional
// YAML file, and COVERS_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides. Double
// underscore separates nesting levels, single underscore stays part of
// the key: COVERS_TRAINING__TEST_SPLIT=0.25 overrides training.test_split.
const EnvPrefix = "COVERS_"

// Config is the root configuration for the training and serving pipeline.
// The pipeline consumes these values; callers embedding the pipeline may
// supply their own.
type Config struct {
	DatabasePath string `koanf:"database_path"`
	ModelDir     string `koanf:"model_dir"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	Training  TrainingConfig  `koanf:"training"`
	Features  FeatureConfig   `koanf:"features"`
	Inventory InventoryConfig `koanf:"inventory"`
}

// TrainingConfig holds per-task extraction windows and split policy.
type TrainingConfig struct {
	// DemandWindowDays is how far back order history is extracted for
	// demand training.
	DemandWindowDays int `koanf:"demand_window_days"`
	// KitchenWindowDays is how far back kitchen timings are extracted.
	KitchenWindowDays int `koanf:"kitchen_window_days"`
	// TestSplit is the held-out fraction (time-ordered, never shuffled
	// for time-series tasks).
	TestSplit float64 `koanf:"test_split"`
	// ChurnThresholdDays: a customer with no order in this many days is
	// labelled churned. This is label engineering, owned by the
	// orchestrator, not the model.
	ChurnThresholdDays int `koanf:"churn_threshold_days"`
	// EnsembleWeight is the short-horizon share of the demand blend.
	EnsembleWeight float64 `koanf:"ensemble_weight"`
}

// FeatureConfig holds the calendar constants used by the processor and the
// feature engineer. Train and serve paths must share one instance so the
// derived flags stay identical.
type FeatureConfig struct {
	// PeakHours are the hours of day flagged is_peak_hour.
	PeakHours []int `koanf:"peak_hours"`
	// WeekendDays are time.Weekday values flagged is_weekend.
	WeekendDays []int `koanf:"weekend_days"`
}

// InventoryConfig holds the cost model for the inventory optimizer.
type InventoryConfig struct {
	HoldingCostPerUnitPerDay float64 `koanf:"holding_cost_per_unit_per_day"`
	StockoutCostPerUnit      float64 `koanf:"stockout_cost_per_unit"`
	ServiceLevel             float64 `koanf:"service_level"`
	DefaultLeadTimeDays      int     `koanf:"default_lead_time_days"`
}

// Default returns the built-in configuration. These values mirror the
// operational constants the rest of the system documents (peak hours,
// windows, split ratio); overriding them reshapes both training and
// serving, so they live in one place.
func Default() *Config {
	return &Config{
		DatabasePath: "restaurant.db",
		ModelDir:     "models",
		LogLevel:     "info",
		LogFormat:    "console",
		Training: TrainingConfig{
			DemandWindowDays:   180,
			KitchenWindowDays:  90,
			TestSplit:          0.2,
			ChurnThresholdDays: 60,
			EnsembleWeight:     0.7,
		},
		Features: FeatureConfig{
			PeakHours:   []int{12, 13, 18, 19, 20},
			WeekendDays: []int{6, 0}, // Saturday, Sunday as time.Weekday
		},
		Inventory: InventoryConfig{
			HoldingCostPerUnitPerDay: 0.01,
			StockoutCostPerUnit:      10.0,
			ServiceLevel:             0.95,
			DefaultLeadTimeDays:      3,
		},
	}
}

// Load merges defaults, the YAML file at path (skipped when path is empty
// or the file does not exist), and environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.ModelDir == "" {
		return fmt.Errorf("model_dir must not be empty")
	}
	if c.Training.TestSplit <= 0 || c.Training.TestSplit >= 1 {
		return fmt.Errorf("training.test_split must be in (0,1), got %v", c.Training.TestSplit)
	}
	if c.Training.EnsembleWeight < 0 || c.Training.EnsembleWeight > 1 {
		return fmt.Errorf("training.ensemble_weight must be in [0,1], got %v", c.Training.EnsembleWeight)
	}
	if c.Training.DemandWindowDays <= 0 || c.Training.KitchenWindowDays <= 0 {
		return fmt.Errorf("training windows must be positive")
	}
	if c.Training.ChurnThresholdDays <= 0 {
		return fmt.Errorf("training.churn_threshold_days must be positive")
	}
	for _, h := range c.Features.PeakHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("features.peak_hours entry out of range: %d", h)
		}
	}
	for _, d := range c.Features.WeekendDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("features.weekend_days entry out of range: %d", d)
		}
	}
	if c.Inventory.ServiceLevel <= 0 || c.Inventory.ServiceLevel >= 1 {
		return fmt.Errorf("inventory.service_level must be in (0,1), got %v", c.Inventory.ServiceLevel)
	}
	return nil
}
