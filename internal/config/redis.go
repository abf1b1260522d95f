package config

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
)

// RedisConfig locates the Redis server used for rate limiting and response
// caching.  REDIS_HOST and REDIS_PORT together take precedence over
// REDIS_ADDR.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" env-default:"true"`
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	TLS      bool   `env:"REDIS_TLS" env-default:"false"`
}

// Address returns the host:port to dial.
func (c RedisConfig) Address() string {
	if c.Host != "" && c.Port != "" {
		return c.Host + ":" + c.Port
	}
	return c.Addr
}

// NewRedisClient connects to Redis and pings it.  It returns nil when Redis
// is disabled or unreachable; callers then run without caching and rate
// limiting.
func NewRedisClient(cfg RedisConfig, log *slog.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Address(),
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, caching and rate limiting disabled",
			slog.String("addr", cfg.Address()), sl.Err(err))
		_ = client.Close()
		return nil
	}
	return client
}
