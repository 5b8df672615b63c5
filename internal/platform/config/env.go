package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is the prefix shared by every branching.ink environment variable.
const EnvPrefix = "BRANCHING_INK_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvWithPrefix loads configuration whose tags omit the shared prefix.
func ParseEnvWithPrefix(target any, prefix string) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env %s: %w", prefix, err)
	}
	return nil
}
