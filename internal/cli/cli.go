// Package cli holds the bootstrap shared by the command line scripts:
// environment loading, logging setup, and construction of the signed API
// client with its optional Redis-backed cache and rate limit state.
package cli

import (
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opswatch/threatstack-client/internal/config"
	"github.com/opswatch/threatstack-client/pkg/client"
	"github.com/opswatch/threatstack-client/pkg/logging"
	"github.com/opswatch/threatstack-client/pkg/threatstack"
)

// Bootstrap loads configuration, configures the global logger from LOGLEVEL,
// and builds the API facade. cacheTTL enables the GET response cache when
// Redis is configured; pass 0 for uncached scripts.
func Bootstrap(cacheTTL time.Duration) (*config.Config, *threatstack.API, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Output: os.Stderr,
	})

	clientCfg := client.DefaultConfig(cfg.Credentials(), cfg.OrgID)
	if cfg.RedisURL != "" {
		rdb, err := redisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		clientCfg.Redis = rdb
		clientCfg.CacheTTL = cacheTTL
	}

	c, err := client.New(clientCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, threatstack.New(c), nil
}

// redisClient accepts both a redis:// URL and a bare host:port address.
func redisClient(rawURL string) (*redis.Client, error) {
	if strings.Contains(rawURL, "://") {
		opts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: rawURL}), nil
}
