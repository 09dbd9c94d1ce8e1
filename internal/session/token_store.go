package session

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// TokenStore persists the session token across restarts.
// LoadToken returns "" when nothing is stored.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) LoadToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryTokenStore) SaveToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) DeleteToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// RedisTokenStore shares the token between agents pointing at the same Redis.
type RedisTokenStore struct {
	rdb *redis.Client
	key string
}

// NewRedisTokenStore stores the token under prefix + "token".
func NewRedisTokenStore(rdb *redis.Client, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "courtbook:"
	}
	return &RedisTokenStore{rdb: rdb, key: prefix + "token"}
}

func (s *RedisTokenStore) LoadToken(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

func (s *RedisTokenStore) SaveToken(ctx context.Context, token string) error {
	return s.rdb.Set(ctx, s.key, token, 0).Err()
}

func (s *RedisTokenStore) DeleteToken(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}
