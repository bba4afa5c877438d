package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// GrantKind names what a grant unlocks.
type GrantKind string

const (
	// GrantLogin is stored for a username after a successful password login.
	GrantLogin GrantKind = "login"
	// GrantRecovery is stored for a phone after a correct security answer.
	GrantRecovery GrantKind = "recovery"
)

// Grants are single-use markers that let the token endpoints mint a token
// right after the caller proved ownership of an identifier. Each grant is
// bound to a random nonce handed only to that caller; the identifier alone
// redeems nothing. Without Redis nothing can be granted, so those endpoints
// fail closed.
type Grants struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewGrants(rdb *redis.Client, ttl time.Duration) *Grants {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Grants{rdb: rdb, ttl: ttl, prefix: "grant"}
}

func (g *Grants) key(kind GrantKind, subject, nonce string) string {
	return g.prefix + ":" + string(kind) + ":" + subject + ":" + nonce
}

// Issue stores a grant for subject and returns the nonce that redeems it.
func (g *Grants) Issue(ctx context.Context, kind GrantKind, subject string) (string, error) {
	if g.rdb == nil {
		return "", fmt.Errorf("%w: grants need redis", ErrCacheUnavailable)
	}
	nonce := uuid.NewString()
	if err := g.rdb.Set(ctx, g.key(kind, subject, nonce), "1", g.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: set grant: %v", ErrCacheUnavailable, err)
	}
	return nonce, nil
}

// Consume removes the grant for subject and nonce and reports whether it
// existed. A grant can be consumed once; an empty nonce matches nothing.
func (g *Grants) Consume(ctx context.Context, kind GrantKind, subject, nonce string) (bool, error) {
	if g.rdb == nil {
		return false, fmt.Errorf("%w: grants need redis", ErrCacheUnavailable)
	}
	if nonce == "" {
		return false, nil
	}
	err := g.rdb.GetDel(ctx, g.key(kind, subject, nonce)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("%w: consume grant: %v", ErrCacheUnavailable, err)
	}
}
