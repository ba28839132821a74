package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file onto the base config.
// Unknown keys are rejected.
func LoadFromFile(path string, base Config) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return base, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&base); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return base, fmt.Errorf("config %s: %w", path, err)
	}
	return base, nil
}

// Load loads config from file (if provided), applies env overrides and
// validates the result.
func Load(path, envPrefix string) (Config, error) {
	cfg := Default()
	var err error
	if path != "" {
		cfg, err = LoadFromFile(path, cfg)
		if err != nil {
			return cfg, err
		}
	}
	if envPrefix != "" {
		cfg = LoadFromEnv(envPrefix, cfg)
	}
	return cfg, Validate(cfg)
}
