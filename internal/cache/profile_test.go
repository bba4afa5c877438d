package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/studentdesk/internal/config"
	"github.com/iliyamo/studentdesk/internal/logging"
	"github.com/iliyamo/studentdesk/internal/model"
	"github.com/iliyamo/studentdesk/internal/repository"
)

type countingLoader struct {
	mu    sync.Mutex
	users map[string]model.User
	reads int
	err   error
}

func (l *countingLoader) FindByID(_ context.Context, id string) (model.User, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.err != nil {
		return model.User{}, false, l.err
	}
	u, ok := l.users[id]
	return u, ok, nil
}

func (l *countingLoader) set(u model.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[u.ID.Hex()] = u
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

func newUser(fullname string) model.User {
	return model.User{
		ID:               primitive.NewObjectID(),
		Username:         "alice",
		PasswordHash:     "$2a$10$hash",
		Phone:            "6591234567",
		FullName:         fullname,
		Gender:           model.GenderFemale,
		Nationality:      model.NationalityMalaysian,
		SecurityQuestion: "q1",
		UpdatedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func setup(t *testing.T) (*miniredis.Miniredis, *ProfileCache, *countingLoader) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	loader := &countingLoader{users: map[string]model.User{}}
	cfg := config.ProfileCacheConfig{Enabled: true, TTL: time.Hour, Prefix: "userProfile"}
	return mr, NewProfileCache(rdb, loader, cfg, logging.Nop()), loader
}

func TestGetProfile_MissThenHit(t *testing.T) {
	mr, c, loader := setup(t)
	u := newUser("Alice Tan")
	loader.set(u)
	ctx := context.Background()

	first, hit, err := c.GetProfile(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, u.Profile(), first)

	second, hit, err := c.GetProfile(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, loader.count())
	assert.True(t, mr.Exists("userProfile:"+u.ID.Hex()))
	assert.Equal(t, time.Hour, mr.TTL("userProfile:"+u.ID.Hex()))
}

func TestGetProfile_EntryHasNoCredentials(t *testing.T) {
	mr, c, loader := setup(t)
	u := newUser("Alice Tan")
	u.SecurityAnswerHash = "$2a$10$answer"
	loader.set(u)

	_, _, err := c.GetProfile(context.Background(), u.ID.Hex())
	require.NoError(t, err)

	raw, err := mr.Get("userProfile:" + u.ID.Hex())
	require.NoError(t, err)
	assert.NotContains(t, raw, "$2a$10$")
}

func TestGetProfile_NotFound(t *testing.T) {
	mr, c, _ := setup(t)
	id := primitive.NewObjectID().Hex()

	_, _, err := c.GetProfile(context.Background(), id)
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.False(t, mr.Exists("userProfile:"+id))
}

func TestGetProfile_StoreError(t *testing.T) {
	_, c, loader := setup(t)
	loader.err = repository.ErrStoreUnavailable

	_, _, err := c.GetProfile(context.Background(), primitive.NewObjectID().Hex())
	require.ErrorIs(t, err, repository.ErrStoreUnavailable)
}

func TestInvalidate_NextReadHitsStore(t *testing.T) {
	_, c, loader := setup(t)
	u := newUser("Alice Tan")
	loader.set(u)
	ctx := context.Background()

	_, _, err := c.GetProfile(ctx, u.ID.Hex())
	require.NoError(t, err)

	updated := u
	updated.FullName = "Alice Lim"
	loader.set(updated)
	require.NoError(t, c.Invalidate(ctx, u.ID.Hex()))

	p, hit, err := c.GetProfile(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Alice Lim", p.FullName)
	assert.Equal(t, 2, loader.count())
}

func TestInvalidate_Twice(t *testing.T) {
	_, c, _ := setup(t)
	id := primitive.NewObjectID().Hex()

	require.NoError(t, c.Invalidate(context.Background(), id))
	require.NoError(t, c.Invalidate(context.Background(), id))
}

func TestGetProfile_ExpiresAfterTTL(t *testing.T) {
	mr, c, loader := setup(t)
	u := newUser("Alice Tan")
	loader.set(u)
	ctx := context.Background()

	_, _, err := c.GetProfile(ctx, u.ID.Hex())
	require.NoError(t, err)

	mr.FastForward(time.Hour + time.Second)

	_, hit, err := c.GetProfile(ctx, u.ID.Hex())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, loader.count())
}

func TestGetProfile_CorruptEntryIsReplaced(t *testing.T) {
	mr, c, loader := setup(t)
	u := newUser("Alice Tan")
	loader.set(u)
	require.NoError(t, mr.Set("userProfile:"+u.ID.Hex(), "{not json"))

	p, hit, err := c.GetProfile(context.Background(), u.ID.Hex())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Alice Tan", p.FullName)

	raw, err := mr.Get("userProfile:" + u.ID.Hex())
	require.NoError(t, err)
	assert.Contains(t, raw, "Alice Tan")
}

func TestGetProfile_RedisDownFallsBackToStore(t *testing.T) {
	mr, c, loader := setup(t)
	u := newUser("Alice Tan")
	loader.set(u)
	mr.Close()

	p, hit, err := c.GetProfile(context.Background(), u.ID.Hex())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, u.Profile(), p)

	err = c.Invalidate(context.Background(), u.ID.Hex())
	require.ErrorIs(t, err, ErrCacheUnavailable)
}

func TestProfileCache_WithoutRedis(t *testing.T) {
	loader := &countingLoader{users: map[string]model.User{}}
	u := newUser("Alice Tan")
	loader.set(u)
	c := NewProfileCache(nil, loader, config.ProfileCacheConfig{}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, hit, err := c.GetProfile(ctx, u.ID.Hex())
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, loader.count())
	assert.NoError(t, c.Invalidate(ctx, u.ID.Hex()))
}
