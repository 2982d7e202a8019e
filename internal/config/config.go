// Package config loads script configuration from a .env file and the
// process environment. The variable names match what operators already
// export for these scripts: API_ID, API_KEY, ORG_ID, LOGLEVEL, the SQL_*
// set for the MySQL sink, and REDIS_URL for the optional cache and shared
// rate limit state.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/opswatch/threatstack-client/pkg/hawk"
)

// ErrMissingCredentials is returned when the API credential triple is
// incomplete.
var ErrMissingCredentials = errors.New("API_ID, API_KEY and ORG_ID must be set")

// Config holds everything a script needs to run.
type Config struct {
	APIID    string
	APIKey   string
	OrgID    string
	LogLevel string

	// SQL connection parameters, only needed by the MySQL sink.
	SQLUser     string
	SQLPassword string
	SQLHost     string
	SQLDatabase string

	// RedisURL enables the response cache and shared 429 gate when set.
	RedisURL string
}

// Load reads .env (when present) and the environment, then validates the
// credential triple. SQL and Redis parameters stay optional; the scripts
// that need them check separately.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg := &Config{
		APIID:       os.Getenv("API_ID"),
		APIKey:      os.Getenv("API_KEY"),
		OrgID:       os.Getenv("ORG_ID"),
		LogLevel:    os.Getenv("LOGLEVEL"),
		SQLUser:     os.Getenv("SQL_USER"),
		SQLPassword: os.Getenv("SQL_PASSWORD"),
		SQLHost:     os.Getenv("SQL_HOST"),
		SQLDatabase: os.Getenv("SQL_DATABASE"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "warning"
	}

	if cfg.APIID == "" || cfg.APIKey == "" || cfg.OrgID == "" {
		return nil, ErrMissingCredentials
	}

	return cfg, nil
}

// Credentials builds the Hawk credential set. The API signs with sha256.
func (c *Config) Credentials() hawk.Credentials {
	return hawk.Credentials{
		ID:        c.APIID,
		Key:       c.APIKey,
		Algorithm: "sha256",
	}
}

// HasSQL reports whether the MySQL sink can be configured.
func (c *Config) HasSQL() bool {
	return c.SQLUser != "" && c.SQLHost != "" && c.SQLDatabase != ""
}

// DSN builds the MySQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
		c.SQLUser, c.SQLPassword, c.SQLHost, c.SQLDatabase)
}
