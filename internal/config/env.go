// Package config reads environment overrides into configuration structs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every environment variable the process reads.
const Prefix = "VOTERPS_"

// ParseEnv loads environment variables into target. Field tags name the
// variable without Prefix; fields whose variable is unset keep their value.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: Prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
