package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore shares the bearer token between processes, keyed per
// consumer key so several merchants can use one Redis.
type RedisTokenStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisTokenStore connects to addr and scopes the entry to consumerKey.
func NewRedisTokenStore(addr, consumerKey string) *RedisTokenStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return NewRedisTokenStoreWithClient(rdb, consumerKey)
}

// NewRedisTokenStoreWithClient reuses an existing client.
func NewRedisTokenStoreWithClient(client *redis.Client, consumerKey string) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		key:    fmt.Sprintf("mpesa:token:%s", consumerKey),
		now:    time.Now,
	}
}

func (r *RedisTokenStore) Load(ctx context.Context) (Token, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("redis GET error: %w", err)
	}

	var token Token
	if err := json.Unmarshal(raw, &token); err != nil {
		// A corrupt entry is treated as empty so the next exchange overwrites it.
		return Token{}, false, nil
	}
	return token, true, nil
}

// Save stores the token until its expiry; already-stale tokens are not stored.
func (r *RedisTokenStore) Save(ctx context.Context, token Token) error {
	ttl := token.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET error: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisTokenStore) Close() error {
	return r.client.Close()
}
