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

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"transferstats.yaml",
	"transferstats.yml",
}

// EnvPrefix prefixes every environment variable read.
const EnvPrefix = "TRANSFERSTATS_"

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = EnvPrefix + "CONFIG"

// LoadOptions carries the command-line inputs to Load.
type LoadOptions struct {
	// ConfigPath is an explicit config file; it must exist.
	ConfigPath string

	// Overrides are koanf keys set from flags, applied last.
	Overrides map[string]any
}

// Load builds the configuration from defaults, file, environment and
// overrides, then validates it. With no store configured it falls back to
// DefaultStore in the working directory.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := findConfigFile(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	for key, val := range opts.Overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.Direction = strings.ToLower(strings.TrimSpace(cfg.Direction))
	if len(cfg.Stores) == 0 {
		cfg.Stores = []string{DefaultStore}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"stores",
	"parser.markers",
	"parser.noise_prefixes",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased variable names, without the prefix, to keys.
var envMappings = map[string]string{
	"stores":        "stores",
	"db":            "stores",
	"days":          "days",
	"top":           "top",
	"direction":     "direction",
	"workers":       "workers",
	"query_timeout": "query_timeout",
	"fill_gaps":     "fill_gaps",
	"passphrase":    "passphrase",

	"sample_size":  "confidence.sample_size",
	"max_examples": "confidence.max_examples",

	"parser_markers":           "parser.markers",
	"parser_noise_prefixes":    "parser.noise_prefixes",
	"parser_min_segment_len":   "parser.min_segment_len",
	"parser_short_segment_len": "parser.short_segment_len",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc returns "" for unknown variables so koanf skips them.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}
