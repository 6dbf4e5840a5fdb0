package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MEMORYD_"

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (MEMORYD_SERVER_PORT, MEMORYD_CATALOG_DSN, ...)
//  2. YAML config file (if configPath is non-empty and the file exists)
//  3. Defaults from NewDefaultConfig
//
// Environment variables map to config keys by stripping the MEMORYD_ prefix,
// lowercasing, and replacing the first underscore with a dot:
//
//	MEMORYD_SERVER_PORT        -> server.port
//	MEMORYD_VECTOR_VECTOR_SIZE -> vector.vector_size
func Load(configPath string) (*Config, error) {
	cfg := NewDefaultConfig()
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// transformEnvKey maps MEMORYD_SECTION_FIELD_NAME to section.field_name.
// Only the first underscore becomes a section separator so multi-word field
// names survive the mapping.
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}
