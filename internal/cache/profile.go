// Package cache holds the Redis-backed layers in front of the credential
// store: the profile cache-aside and the short-lived login/recovery grants.
//
// The profile cache is read-through and write-invalidate. Between a store
// write and the matching Invalidate a concurrent reader may repopulate the
// entry with the old snapshot; it then lives until the TTL expires. That
// window is accepted.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/studentdesk/internal/config"
	"github.com/iliyamo/studentdesk/internal/logging"
	"github.com/iliyamo/studentdesk/internal/model"
	"github.com/iliyamo/studentdesk/internal/repository"
)

// ErrCacheUnavailable wraps Redis failures that cannot be hidden behind a
// store fallback.
var ErrCacheUnavailable = errors.New("cache unavailable")

// ProfileLoader is the part of the credential store the cache reads from.
type ProfileLoader interface {
	FindByID(ctx context.Context, id string) (model.User, bool, error)
}

type ProfileCache struct {
	rdb    *redis.Client
	store  ProfileLoader
	ttl    time.Duration
	prefix string
	log    logging.Logger
}

// NewProfileCache returns a cache over store. A nil rdb, or a disabled
// config, yields a pass-through that always reads the store.
func NewProfileCache(rdb *redis.Client, store ProfileLoader, cfg config.ProfileCacheConfig, log logging.Logger) *ProfileCache {
	if !cfg.Enabled {
		rdb = nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "userProfile"
	}
	if log == nil {
		log = logging.Nop()
	}
	return &ProfileCache{rdb: rdb, store: store, ttl: ttl, prefix: prefix, log: log}
}

// Key returns the Redis key of id's entry.
func (c *ProfileCache) Key(id string) string {
	return c.prefix + ":" + id
}

// GetProfile returns the profile of user id. hit reports whether it came
// from Redis. A missing user yields repository.ErrNotFound. Redis errors
// are logged and the store is read instead.
func (c *ProfileCache) GetProfile(ctx context.Context, id string) (p model.Profile, hit bool, err error) {
	key := c.Key(id)

	if c.rdb != nil {
		bs, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if jerr := json.Unmarshal(bs, &p); jerr == nil {
				return p, true, nil
			}
			c.log.Warn(ctx, "dropping unreadable profile cache entry", "key", key)
		case errors.Is(err, redis.Nil):
		default:
			c.log.Warn(ctx, "profile cache read failed, using store", "key", key, "err", err)
		}
	}

	u, found, err := c.store.FindByID(ctx, id)
	if err != nil {
		return model.Profile{}, false, err
	}
	if !found {
		return model.Profile{}, false, repository.ErrNotFound
	}
	p = u.Profile()
	c.fill(ctx, key, p)
	return p, false, nil
}

func (c *ProfileCache) fill(ctx context.Context, key string, p model.Profile) {
	if c.rdb == nil {
		return
	}
	bs, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, bs, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "profile cache write failed", "key", key, "err", err)
	}
}

// Invalidate deletes id's entry. Deleting an absent entry is a no-op.
func (c *ProfileCache) Invalidate(ctx context.Context, id string) error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, c.Key(id)).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrCacheUnavailable, c.Key(id), err)
	}
	return nil
}
