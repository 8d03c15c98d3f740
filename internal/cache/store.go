package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Store is the key-value contract the engine needs.
type Store interface {
	// Get returns (value, true, nil) on hit and ("", false, nil) on miss.
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Connect initializes a Redis client from a redis:// (or rediss://) URL or a
// bare host:port.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisStore is a Store on a shared go-redis connection pool.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore namespaces every key with prefix (e.g. "testgen:").
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	return s.client.SetEx(ctx, s.prefix+key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStore) Close() error { return s.client.Close() }

// MemoryStore is a bounded in-process Store with per-key expiry, used when
// no Redis URL is configured.
type MemoryStore struct {
	mu    sync.Mutex
	items *lru.Cache[string, memEntry]
	now   func() time.Time
}

type memEntry struct {
	value   string
	expires time.Time
}

// NewMemoryStore returns a store holding at most size keys.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = 1024
	}
	items, _ := lru.New[string, memEntry](size)
	return &MemoryStore{items: items, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items.Get(key)
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(e.expires) {
		s.items.Remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) SetEx(_ context.Context, key string, ttl time.Duration, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Add(key, memEntry{value: value, expires: s.now().Add(ttl)})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Remove(key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Purge()
	return nil
}
