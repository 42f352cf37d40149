package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9230, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "file", cfg.EventStore.Backend)
	assert.Equal(t, "file", cfg.LearningStore.Backend)
	assert.InDelta(t, 0.3, cfg.Detector.MinConfidence, 1e-9)
	assert.Equal(t, 5, cfg.Detector.MinOccurrences)
	assert.Equal(t, 5, cfg.Engine.PeakHours)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8080
logging:
  level: debug
  format: console
event_store:
  backend: sqlite
  path: /tmp/orbd-test/events.db
detector:
  min_confidence: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host) // default survives partial file
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "sqlite", cfg.EventStore.Backend)
	assert.Equal(t, "/tmp/orbd-test/events.db", cfg.EventStore.Path)
	assert.InDelta(t, 0.5, cfg.Detector.MinConfidence, 1e-9)
	// Untouched sections keep their defaults.
	assert.Equal(t, "file", cfg.LearningStore.Backend)
	assert.Equal(t, 5, cfg.Detector.MinOccurrences)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9230, cfg.Server.Port)
	assert.Equal(t, "file", cfg.EventStore.Backend)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ORBD_SERVER_PORT", "7000")
	t.Setenv("ORBD_LOGGING_LEVEL", "warn")
	t.Setenv("ORBD_EVENT_STORE_BACKEND", "memory")
	t.Setenv("ORBD_DETECTOR_MIN_CONFIDENCE", "0.4")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment wins over the file.
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.EventStore.Backend)
	assert.InDelta(t, 0.4, cfg.Detector.MinConfidence, 1e-9)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadInvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 99999\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestTransformEnvKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ORBD_SERVER_PORT", "server.port"},
		{"ORBD_LOGGING_LEVEL", "logging.level"},
		{"ORBD_EVENT_STORE_BACKEND", "event_store.backend"},
		{"ORBD_LEARNING_STORE_PATH", "learning_store.path"},
		{"ORBD_DETECTOR_MIN_CONFIDENCE", "detector.min_confidence"},
		{"ORBD_ENGINE_PEAK_HOURS", "engine.peak_hours"},
		{"ORBD_UNKNOWN", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, transformEnvKey(tc.in))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.EventStore = StoreConfig{Backend: "memory"}
		cfg.LearningStore = StoreConfig{Backend: "memory"}
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "format"},
		{"file backend needs path", func(c *Config) { c.EventStore = StoreConfig{Backend: "file"} }, "path"},
		{"unknown backend", func(c *Config) { c.LearningStore = StoreConfig{Backend: "redis"} }, "backend"},
		{"confidence out of range", func(c *Config) { c.Detector.MinConfidence = 2 }, "min_confidence"},
		{"zero occurrences", func(c *Config) { c.Detector.MinOccurrences = 0 }, "min_occurrences"},
		{"zero peak hours", func(c *Config) { c.Engine.PeakHours = 0 }, "peak_hours"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
