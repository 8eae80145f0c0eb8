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

// envPrefix scopes which environment variables feed configuration.
const envPrefix = "NEWSDECK_"

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NEWSDECK_SERVER_PORT, NEWSDECK_STORE_URI, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// If configPath is empty, no file is read and only env vars and defaults
// apply. A non-empty configPath that does not exist is an error: an operator
// who points at a file expects it to be used.
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing, and splitting section from field on the first underscore:
//
//	NEWSDECK_SERVER_PORT          -> server.port
//	NEWSDECK_PIPELINE_CHUNK_SIZE  -> pipeline.chunk_size
//	NEWSDECK_AUTH_CLIENT_SECRET   -> auth.client_secret
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// Split section from field on the first underscore only, so
		// compound field names keep their underscores:
		//   NEWSDECK_PIPELINE_RECENCY_WINDOW -> pipeline.recency_window
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
