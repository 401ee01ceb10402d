package mpesa

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

const redisTokenKey = "mpesa:token:key"

func newRedisStore(t *testing.T) (*RedisTokenStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	store := NewRedisTokenStore(srv.Addr(), "key")
	t.Cleanup(func() { _ = store.Close() })
	return store, srv
}

func TestRedisTokenStoreRoundTrip(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Save(ctx, Token{Value: "abc", ExpiresAt: expires}))

	ttl := srv.TTL(redisTokenKey)
	require.Greater(t, ttl, 59*time.Minute)
	require.LessOrEqual(t, ttl, time.Hour)

	token, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", token.Value)
	require.True(t, expires.Equal(token.ExpiresAt))

	srv.FastForward(time.Hour + time.Second)
	_, ok, err = store.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisTokenStoreMiss(t *testing.T) {
	store, _ := newRedisStore(t)

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisTokenStoreCorruptEntryIsEmpty(t *testing.T) {
	store, srv := newRedisStore(t)
	require.NoError(t, srv.Set(redisTokenKey, "{not json"))

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisTokenStoreSkipsStaleTokens(t *testing.T) {
	store, srv := newRedisStore(t)
	now := time.Date(2026, 2, 25, 12, 0, 0, 0, time.Local)
	store.now = func() time.Time { return now }

	err := store.Save(context.Background(), Token{Value: "old", ExpiresAt: now.Add(-time.Second)})
	require.NoError(t, err)
	require.False(t, srv.Exists(redisTokenKey))
}

func TestRedisTokenStoreUnavailable(t *testing.T) {
	store, srv := newRedisStore(t)
	srv.Close()

	_, _, err := store.Load(context.Background())
	require.ErrorContains(t, err, "redis GET error")
}

func TestClientsShareTokenThroughRedis(t *testing.T) {
	gw := newFakeGateway(t)
	srv := miniredis.RunT(t)

	values := validValues()
	values[KeyBaseURL] = gw.server.URL
	values[KeyRedisAddr] = srv.Addr()

	first, err := NewClient(values)
	require.NoError(t, err)
	second, err := NewClient(values)
	require.NoError(t, err)

	a, err := first.Token(context.Background())
	require.NoError(t, err)
	b, err := second.Token(context.Background())
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.EqualValues(t, 1, gw.authCalls.Load())
	require.True(t, srv.Exists(redisTokenKey))
}

func TestClientKeepsWorkingWhenRedisIsDown(t *testing.T) {
	gw := newFakeGateway(t)
	srv := miniredis.RunT(t)
	srv.Close()

	values := validValues()
	values[KeyBaseURL] = gw.server.URL
	values[KeyRedisAddr] = srv.Addr()

	client, err := NewClient(values)
	require.NoError(t, err)

	token, err := client.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-1", token)
}

func TestNewClientDefaultsToMemoryStore(t *testing.T) {
	client, err := NewClient(validValues())
	require.NoError(t, err)

	_, ok := client.store.(*MemoryTokenStore)
	require.True(t, ok)
}
