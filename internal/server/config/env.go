package config

import (
	"os"

	"github.com/kelseyhightower/envconfig"
)

// parseEnv overlays variables that are set in the environment; unset ones
// leave the field untouched. PORT is honoured as a shorthand for
// LISTEN_ADDR=":<port>" when LISTEN_ADDR itself is absent.
func parseEnv(config *Config) {
	if err := envconfig.Process("", config); err != nil {
		panic(err)
	}

	if _, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		return
	}
	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		config.ListenAddr = ":" + port
	}
}
