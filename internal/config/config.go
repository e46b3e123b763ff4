// Package config is the wiring layer over pkg/config: cmd/producer and
// cmd/consumer call MustLoad once at startup and pass the parsed struct
// down to every collaborator, never touching a file themselves.
package config

import (
	"fmt"

	"ndnrtc/pkg/config"
)

// Config re-exports pkg/config.Config so callers only need one import
// path for wiring.
type Config = config.Config

// Load reads and validates configuration from path.
func Load(path string) (*Config, error) {
	return config.Load(path)
}

// MustLoad loads configuration from path and panics on failure. Intended
// for use in cmd/producer and cmd/consumer's main(), where there is no
// sensible recovery from a broken configuration file.
func MustLoad(path string) *Config {
	cfg, err := config.Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}
