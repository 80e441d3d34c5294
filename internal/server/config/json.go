package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sleepsupervisor/internal/flagx"
	"github.com/dmitrijs2005/sleepsupervisor/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "3s" and integer nanoseconds are accepted.
type JsonConfig struct {
	ListenAddr         string         `json:"listen_addr"`
	WorkerAgentURL     string         `json:"worker_agent_url"`
	WorkerTimeout      timex.Duration `json:"worker_agent_timeout"`
	WorkerRetryBackoff timex.Duration `json:"worker_agent_retry_backoff"`
	StorageDriver      string         `json:"storage_driver"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	SessionTTL         timex.Duration `json:"session_lifetime"`
	CookieSecure       *bool          `json:"session_cookie_secure"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
	AgentID            string         `json:"agent_id"`
	AgentName          string         `json:"agent_name"`
}

// parseJson loads the file named by -c/-config into config. Keys missing
// from the file leave the current value in place. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.WorkerAgentURL, c.WorkerAgentURL)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.AgentID, c.AgentID)
	setString(&config.AgentName, c.AgentName)

	if c.WorkerTimeout.Duration != 0 {
		config.WorkerTimeout = c.WorkerTimeout.Duration
	}
	if c.WorkerRetryBackoff.Duration != 0 {
		config.WorkerRetryBackoff = c.WorkerRetryBackoff.Duration
	}
	if c.SessionTTL.Duration != 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
