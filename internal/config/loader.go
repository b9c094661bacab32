package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and expands environment variables.
// A relative account.token_path is taken relative to the config file.
func Load(path string) (*IngestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg IngestConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.Account.resolveTokenPath(filepath.Dir(path))

	return &cfg, nil
}

func (a *AccountConfig) resolveTokenPath(dir string) {
	if a.TokenPath == "" || filepath.IsAbs(a.TokenPath) {
		return
	}
	a.TokenPath = filepath.Join(dir, a.TokenPath)
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*IngestConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*IngestConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
