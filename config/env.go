package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment override, e.g. SIMPLEHASH_DATABASE_DSN.
const EnvPrefix = "SIMPLEHASH_"

// ApplyEnv overrides fields of target from environment variables. Only variables
// that are set take effect, so YAML values survive when the environment is empty.
func ApplyEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
