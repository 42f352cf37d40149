// Package config provides configuration loading for orbd.
package config

import (
	"fmt"
)

// Config is the root configuration for the orbd daemon.
type Config struct {
	Server        ServerConfig    `koanf:"server"`
	Logging       LoggingConfig   `koanf:"logging"`
	Telemetry     TelemetryConfig `koanf:"telemetry"`
	EventStore    StoreConfig     `koanf:"event_store"`
	LearningStore StoreConfig     `koanf:"learning_store"`
	Detector      DetectorConfig  `koanf:"detector"`
	Engine        EngineConfig    `koanf:"engine"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	// Endpoint is the OTLP gRPC collector address (host:port).
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

// StoreConfig selects a storage backend for the event or learning store.
type StoreConfig struct {
	// Backend is one of "memory", "file", "sqlite".
	Backend string `koanf:"backend"`
	// Path is the journal or database file. Unused by the memory backend.
	Path string `koanf:"path"`
}

// DetectorConfig holds pattern detection thresholds.
//
// The cutoffs are tunable operating points, not business rules; defaults
// match the values the detectors are tested against.
type DetectorConfig struct {
	// MinConfidence drops patterns scored below it.
	MinConfidence float64 `koanf:"min_confidence"`
	// MinOccurrences is the minimum action frequency for frequency-based
	// families.
	MinOccurrences int `koanf:"min_occurrences"`
	// MinSampleSize gates rate-based families (error_pattern,
	// mode_preference, risk_threshold) against small-sample noise.
	MinSampleSize int `koanf:"min_sample_size"`
	// UsageRateThreshold flags a mode preference within a context.
	UsageRateThreshold float64 `koanf:"usage_rate_threshold"`
	// ErrorRateThreshold flags a failing action.
	ErrorRateThreshold float64 `koanf:"error_rate_threshold"`
	// ImprovementThreshold flags an efficiency gain (0.2 = 20% faster).
	ImprovementThreshold float64 `koanf:"improvement_threshold"`
	// RoutineCoverage is the share of daily occurrences a routine's clock
	// window must cover.
	RoutineCoverage float64 `koanf:"routine_coverage"`
	// RoutineWindowFraction is the largest share of the day a clock window
	// may span and still count as a routine.
	RoutineWindowFraction float64 `koanf:"routine_window_fraction"`
	// EfficiencySample is how many early/recent occurrences the
	// efficiency_gain family averages over.
	EfficiencySample int `koanf:"efficiency_sample"`
}

// EngineConfig holds adaptation engine recommendation thresholds.
type EngineConfig struct {
	// ModeShareThreshold promotes a mode used above this share of events.
	ModeShareThreshold float64 `koanf:"mode_share_threshold"`
	// FeatureErrorThreshold flags a feature whose error rate exceeds it.
	FeatureErrorThreshold float64 `koanf:"feature_error_threshold"`
	// OverallErrorThreshold flags the whole window's error rate.
	OverallErrorThreshold float64 `koanf:"overall_error_threshold"`
	// PeakHours is how many top usage hours to report.
	PeakHours int `koanf:"peak_hours"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 9230,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "orbd",
			Endpoint:    "localhost:4317",
			Insecure:    true,
		},
		EventStore: StoreConfig{
			Backend: "file",
			Path:    defaultStatePath("events.jsonl"),
		},
		LearningStore: StoreConfig{
			Backend: "file",
			Path:    defaultStatePath("learning.jsonl"),
		},
		Detector: DefaultDetectorConfig(),
		Engine:   DefaultEngineConfig(),
	}
}

// DefaultDetectorConfig returns the detection thresholds the pipeline is
// tuned and tested against.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinConfidence:         0.3,
		MinOccurrences:        5,
		MinSampleSize:         5,
		UsageRateThreshold:    0.7,
		ErrorRateThreshold:    0.15,
		ImprovementThreshold:  0.2,
		RoutineCoverage:       0.7,
		RoutineWindowFraction: 1.0 / 3.0,
		EfficiencySample:      5,
	}
}

// DefaultEngineConfig returns the recommendation thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ModeShareThreshold:    0.3,
		FeatureErrorThreshold: 0.2,
		OverallErrorThreshold: 0.15,
		PeakHours:             5,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	for name, sc := range map[string]StoreConfig{
		"event_store":    c.EventStore,
		"learning_store": c.LearningStore,
	} {
		switch sc.Backend {
		case "memory":
		case "file", "sqlite", "":
			if sc.Path == "" {
				return fmt.Errorf("%s: path is required for backend %q", name, sc.Backend)
			}
		default:
			return fmt.Errorf("%s: unsupported backend %q", name, sc.Backend)
		}
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if c.Engine.PeakHours < 1 {
		return fmt.Errorf("engine: peak_hours must be >= 1, got %d", c.Engine.PeakHours)
	}
	return nil
}

// Validate checks detection thresholds for errors.
func (c DetectorConfig) Validate() error {
	for name, v := range map[string]float64{
		"min_confidence":          c.MinConfidence,
		"usage_rate_threshold":    c.UsageRateThreshold,
		"error_rate_threshold":    c.ErrorRateThreshold,
		"improvement_threshold":   c.ImprovementThreshold,
		"routine_coverage":        c.RoutineCoverage,
		"routine_window_fraction": c.RoutineWindowFraction,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if c.MinOccurrences < 1 {
		return fmt.Errorf("min_occurrences must be >= 1, got %d", c.MinOccurrences)
	}
	if c.MinSampleSize < 1 {
		return fmt.Errorf("min_sample_size must be >= 1, got %d", c.MinSampleSize)
	}
	if c.EfficiencySample < 1 {
		return fmt.Errorf("efficiency_sample must be >= 1, got %d", c.EfficiencySample)
	}
	return nil
}
