// Package config handles configuration for the supervisor server: defaults,
// then a JSON file, then environment variables, then command-line flags.
package config

import "time"

// Config holds runtime settings for the supervisor.
//
// Fields:
//   - ListenAddr: bind address of the HTTP API.
//   - WorkerAgentURL: base URL of the Worker Agent.
//   - WorkerTimeout / WorkerRetryBackoff: per-call bound and the pause before the single retry.
//   - StorageDriver: memory, sqlite or postgres. DatabaseDSN is its DSN.
//   - SecretKey: HMAC secret for signing session tokens (HS256).
//   - SessionTTL: lifetime of a login session.
type Config struct {
	ListenAddr         string        `envconfig:"LISTEN_ADDR"`
	WorkerAgentURL     string        `envconfig:"WORKER_AGENT_URL"`
	WorkerTimeout      time.Duration `envconfig:"WORKER_AGENT_TIMEOUT"`
	WorkerRetryBackoff time.Duration `envconfig:"WORKER_AGENT_RETRY_BACKOFF"`
	StorageDriver      string        `envconfig:"STORAGE_DRIVER"`
	DatabaseDSN        string        `envconfig:"DATABASE_DSN"`
	SecretKey          string        `envconfig:"SECRET_KEY"`
	SessionTTL         time.Duration `envconfig:"SESSION_LIFETIME"`
	CookieSecure       bool          `envconfig:"SESSION_COOKIE_SECURE"`
	LogLevel           string        `envconfig:"LOG_LEVEL"`
	LogFormat          string        `envconfig:"LOG_FORMAT"`
	AgentID            string        `envconfig:"AGENT_ID"`
	AgentName          string        `envconfig:"AGENT_NAME"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":3002"
	c.WorkerAgentURL = "http://localhost:8000"
	c.WorkerTimeout = 3 * time.Second
	c.WorkerRetryBackoff = 200 * time.Millisecond
	c.StorageDriver = "sqlite"
	c.DatabaseDSN = "data/supervisor.db"
	c.SecretKey = "dev-secret-key-change-in-production"
	c.SessionTTL = 24 * time.Hour
	c.CookieSecure = false
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.AgentID = "supervisor-agent-001"
	c.AgentName = "Sleep Optimizer Supervisor Agent"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
