package config

import (
	"github.com/caarlos0/env/v11"
)

// parseEnv overlays MEDACCOUNT_* environment variables onto config.
// Unset variables leave the current value alone. Durations use Go syntax
// ("15m", "168h").
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
