// Package config loads LeapORM tool configuration: named connections,
// the default connection, and logging settings. Precedence, lowest to
// highest: built-in defaults, leaporm.yaml, LEAPORM_-prefixed
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/leapstack-labs/leaporm/pkg/driver"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "leaporm.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "leaporm.yml"

// Config is the tool configuration.
type Config struct {
	// Default names the connection used when an entity type does not
	// name one. Left empty with exactly one connection configured, that
	// connection becomes the default.
	Default string `koanf:"default"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Connections maps connection names to backend settings.
	Connections map[string]driver.Config `koanf:"connections"`
}

// Load reads configuration from cfgFile (or, when empty, from
// leaporm.yaml / leaporm.yml in the working directory), then overlays
// LEAPORM_-prefixed environment variables.
func Load(cfgFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"log_level": "info",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = findConfigFile(".")
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// Transform: LEAPORM_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider("LEAPORM_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LEAPORM_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills derivable settings: with a single connection and
// no explicit default, that connection is the default.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Default == "" && len(c.Connections) == 1 {
		for name := range c.Connections {
			c.Default = name
		}
	}
}

// Validate reports an unknown default connection name.
func (c *Config) Validate() error {
	if c.Default == "" {
		return nil
	}
	if _, ok := c.Connections[c.Default]; !ok {
		return fmt.Errorf("default connection %q is not configured", c.Default)
	}
	return nil
}

// findConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func findConfigFile(dir string) string {
	yamlPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}

	ymlPath := filepath.Join(dir, ConfigFileNameAlt)
	if _, err := os.Stat(ymlPath); err == nil {
		return ymlPath
	}

	return ""
}
