package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/sleepsupervisor/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":3002")
//	-w string     Worker Agent base URL
//	-t duration   Worker Agent call timeout
//	-b duration   pause before retrying a transient Worker Agent failure
//	-g string     storage driver (memory, sqlite, postgres)
//	-d string     database DSN
//	-s string     session token secret key
//	-e duration   session lifetime
//	-l string     log level
//
// os.Args is filtered through flagx.FilterArgs first so that -c/-config and
// flags owned by other components do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-t", "-b", "-g", "-d", "-s", "-e", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.WorkerAgentURL, "w", config.WorkerAgentURL, "worker agent base URL")
	fs.DurationVar(&config.WorkerTimeout, "t", config.WorkerTimeout, "worker agent call timeout")
	fs.DurationVar(&config.WorkerRetryBackoff, "b", config.WorkerRetryBackoff, "worker agent retry backoff")
	fs.StringVar(&config.StorageDriver, "g", config.StorageDriver, "storage driver: memory, sqlite or postgres")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.SessionTTL, "e", config.SessionTTL, "session lifetime")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
