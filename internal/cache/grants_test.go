package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGrants(t *testing.T) (*miniredis.Miniredis, *Grants) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewGrants(rdb, 5*time.Minute)
}

func TestGrants_ConsumedOnce(t *testing.T) {
	_, g := newGrants(t)
	ctx := context.Background()

	nonce, err := g.Issue(ctx, GrantRecovery, "6591234567")
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	ok, err := g.Consume(ctx, GrantRecovery, "6591234567", nonce)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Consume(ctx, GrantRecovery, "6591234567", nonce)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrants_RequireMatchingNonce(t *testing.T) {
	_, g := newGrants(t)
	ctx := context.Background()

	nonce, err := g.Issue(ctx, GrantLogin, "alice")
	require.NoError(t, err)

	for _, guess := range []string{"", "not-the-nonce", nonce + "x"} {
		ok, err := g.Consume(ctx, GrantLogin, "alice", guess)
		require.NoError(t, err)
		assert.False(t, ok, guess)
	}

	// failed attempts leave the real grant in place
	ok, err := g.Consume(ctx, GrantLogin, "alice", nonce)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrants_NoncesDiffer(t *testing.T) {
	_, g := newGrants(t)
	ctx := context.Background()

	first, err := g.Issue(ctx, GrantLogin, "alice")
	require.NoError(t, err)
	second, err := g.Issue(ctx, GrantLogin, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	ok, err := g.Consume(ctx, GrantLogin, "alice", first)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = g.Consume(ctx, GrantLogin, "alice", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrants_BoundToKindAndSubject(t *testing.T) {
	_, g := newGrants(t)
	ctx := context.Background()

	nonce, err := g.Issue(ctx, GrantLogin, "alice")
	require.NoError(t, err)

	ok, err := g.Consume(ctx, GrantRecovery, "alice", nonce)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Consume(ctx, GrantLogin, "bob", nonce)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrants_Expire(t *testing.T) {
	mr, g := newGrants(t)
	ctx := context.Background()

	nonce, err := g.Issue(ctx, GrantLogin, "alice")
	require.NoError(t, err)
	mr.FastForward(5*time.Minute + time.Second)

	ok, err := g.Consume(ctx, GrantLogin, "alice", nonce)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrants_FailClosedWithoutRedis(t *testing.T) {
	g := NewGrants(nil, 0)
	ctx := context.Background()

	nonce, err := g.Issue(ctx, GrantLogin, "alice")
	require.ErrorIs(t, err, ErrCacheUnavailable)
	assert.Empty(t, nonce)

	ok, err := g.Consume(ctx, GrantLogin, "alice", "whatever")
	require.ErrorIs(t, err, ErrCacheUnavailable)
	assert.False(t, ok)
}
