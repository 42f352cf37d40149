package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces orbd environment variables.
	envPrefix = "ORBD_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load loads configuration from the YAML file at configPath, then overrides
// with environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (ORBD_SERVER_PORT, ORBD_LOGGING_LEVEL, ...)
//  2. YAML config file
//  3. Defaults (NewDefaultConfig)
//
// If configPath is empty the default path ~/.config/orbd/config.yaml is
// used; a missing file is not an error.
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing, and splitting the first underscore-delimited token into the
// section name:
//
//	ORBD_SERVER_PORT            -> server.port
//	ORBD_EVENT_STORE_BACKEND    -> event_store.backend
//	ORBD_DETECTOR_MIN_CONFIDENCE -> detector.min_confidence
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "orbd", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// sections are the top-level config keys an environment variable can
// address. Multi-word sections must be listed before their single-word
// prefixes would match.
var sections = []string{
	"event_store",
	"learning_store",
	"server",
	"logging",
	"telemetry",
	"detector",
	"engine",
}

// transformEnvKey maps ORBD_SECTION_FIELD_NAME to section.field_name.
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range sections {
		prefix := section + "_"
		if strings.HasPrefix(s, prefix) {
			return section + "." + strings.TrimPrefix(s, prefix)
		}
	}
	return s
}

// defaultStatePath places a state file under ~/.local/share/orbd, falling
// back to the working directory when the home directory is unknown.
func defaultStatePath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".local", "share", "orbd", name)
}
