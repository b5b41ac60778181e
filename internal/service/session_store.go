package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore guarda token de sesion -> user id con vencimiento.
type SessionStore interface {
	Save(ctx context.Context, token string, userID int64, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (int64, bool, error)
	Delete(ctx context.Context, token string) error
}

type memorySession struct {
	userID    int64
	expiresAt time.Time
}

type memorySessionStore struct {
	mu    sync.Mutex
	items map[string]memorySession
	now   func() time.Time
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		items: make(map[string]memorySession),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *memorySessionStore) Save(_ context.Context, token string, userID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(token) == "" {
		return nil
	}
	s.items[token] = memorySession{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *memorySessionStore) Lookup(_ context.Context, token string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[token]
	if !ok {
		return 0, false, nil
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, token)
		return 0, false, nil
	}
	return item.userID, true, nil
}

func (s *memorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
	return nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisSessionStore struct {
	client  redisKVClient
	prefix  string
	timeout time.Duration
}

func NewRedisSessionStore(client *redis.Client) SessionStore {
	return newRedisStore(client, "auth:session:")
}

// NewRedisRememberStore guarda jti de tokens "recordarme" vigentes -> user id.
func NewRedisRememberStore(client *redis.Client) SessionStore {
	return newRedisStore(client, "auth:remember:")
}

func newRedisStore(client *redis.Client, prefix string) SessionStore {
	if client == nil {
		return nil
	}
	return &redisSessionStore{
		client:  client,
		prefix:  prefix,
		timeout: 500 * time.Millisecond,
	}
}

func (s *redisSessionStore) Save(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Set(ctx, s.prefix+token, strconv.FormatInt(userID, 10), ttl).Err()
}

func (s *redisSessionStore) Lookup(ctx context.Context, token string) (int64, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	userID, err := s.client.Get(ctx, s.prefix+token).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return userID, true, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Del(ctx, s.prefix+token).Err()
}
