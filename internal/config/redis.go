package config

// Redis backs the profile cache, login/recovery grants and the rate
// limiter. The client is built here and handed to those components; main
// owns its lifetime and closes it on shutdown.

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis server.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	TLS          bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LoadRedisConfig reads REDIS_* variables:
//
//	REDIS_HOST and REDIS_PORT – hostname and port (take precedence over REDIS_ADDR)
//	REDIS_ADDR                – host:port shorthand, default localhost:6379
//	REDIS_PASSWORD            – optional password
//	REDIS_DB                  – database number (default 0)
//	REDIS_TLS                 – enable TLS
//	CACHE_TIMEOUT             – per-command read/write timeout (default 2s)
func LoadRedisConfig() RedisConfig {
	return loadRedis(os.LookupEnv)
}

func loadRedis(lookup lookupFunc) RedisConfig {
	e := env{lookup: lookup}
	addr := e.str("REDIS_ADDR", "localhost:6379")
	host, port := e.str("REDIS_HOST", ""), e.str("REDIS_PORT", "")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	timeout := e.dur("CACHE_TIMEOUT", 2*time.Second)
	return RedisConfig{
		Addr:         addr,
		Password:     e.str("REDIS_PASSWORD", ""),
		DB:           e.int("REDIS_DB", 0),
		TLS:          e.bool("REDIS_TLS", false),
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
}

// NewRedisClient connects to Redis and pings it. On failure the client is
// closed and an error returned; callers decide whether to run without a
// cache.
func NewRedisClient(ctx context.Context, rc RedisConfig) (*redis.Client, error) {
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		TLSConfig:    tlsConf,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", rc.Addr, err)
	}
	return client, nil
}
