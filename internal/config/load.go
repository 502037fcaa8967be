package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads path and returns the validated config it holds.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes TOML on top of the defaults and validates the result.
// Unknown keys are errors carrying a "did you mean" hint.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	// An explicit empty [accounts] table decodes to nil.
	if cfg.Accounts == nil {
		cfg.Accounts = make(map[string]Account)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
// A fresh install has no file until the first account is saved.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return cfg, err
}

// Resolve picks the config path (CLI > env > default) and loads it. The
// path is returned too; it is where later changes are saved.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, string, error) {
	cfgPath := ResolvePath(env, cli)
	if cfgPath == "" {
		return nil, "", errors.New("cannot determine config path: no home directory")
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, "", err
	}

	return cfg, cfgPath, nil
}
