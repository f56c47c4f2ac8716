package cache

import (
	"github.com/redis/go-redis/v9"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/config"
)

// NewClient builds the shared Redis client, or nil when no address is
// configured. Connectivity is probed per operation by the session store,
// not here, so a Redis that is down at boot does not block startup.
func NewClient(cfg *config.Config) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisOpTimeout,
		WriteTimeout: cfg.RedisOpTimeout,
	})
}
