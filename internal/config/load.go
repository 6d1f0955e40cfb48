package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ZebulonRouseFrantzich/paperfetch/internal/platform"
)

// Load builds the effective configuration. When path is empty the
// PAPERFETCH_CONFIG variable is consulted, then DefaultConfigFile in the
// working directory; a missing default file yields the defaults, while a
// missing explicit file is an error. Environment overrides are applied last
// and the result is validated.
func Load(ctx context.Context, path string, detector platform.Detector) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if env, ok := os.LookupEnv(EnvConfig); ok && env != "" {
			path = env
			explicit = true
		} else {
			path = DefaultConfigFile
		}
	}

	cfg, err := NewParser(detector).ParseFile(ctx, path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			cfg = Default()
		} else if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found", path)
		} else {
			return nil, err
		}
	}

	ApplyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from PAPERFETCH_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		cfg.APIURL = v
	}
	if v, ok := lookup(EnvDest); ok && v != "" {
		cfg.Dest = v
	}
	if v, ok := lookup(EnvProject); ok && v != "" {
		cfg.Project = v
	}
}
