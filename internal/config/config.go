// Package config loads CLI settings from an optional YAML file overlaid
// with GEOCHUNK_ environment variables. Command-line flags override both
// and are applied by the cli package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "geochunk.yaml"

// EnvPrefix selects the environment variables that override file values.
// GEOCHUNK_LOG_LEVEL sets log_level.
const EnvPrefix = "GEOCHUNK_"

// Config holds the settings shared by all commands.
type Config struct {
	LogLevel  string `koanf:"log_level"`  // debug|info|warn|error
	LogFormat string `koanf:"log_format"` // text|json
	Workers   int    `koanf:"workers"`    // 0 = one per logical core
	TraceDB   string `koanf:"trace_db"`   // empty disables tracing
	Format    string `koanf:"format"`     // text|json command output
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{LogLevel: "info", LogFormat: "text", Format: "text"}
}

// Load merges YAML at path with environment variables. An empty path reads
// DefaultFile when it exists; an explicit path must exist.
func Load(path string) (Config, error) {
	optional := path == ""
	if optional {
		path = DefaultFile
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
		!(optional && errors.Is(err, fs.ErrNotExist)) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// Validate rejects unknown enum values and negative counts.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format %q: want text or json", c.LogFormat)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("format %q: want text or json", c.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}
