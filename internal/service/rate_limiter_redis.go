package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cada solicitud es un miembro del sorted set con score = instante en ms.
// Se descartan los que quedaron fuera de la ventana antes de contar, igual que el limiter en memoria.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
if redis.call("ZCARD", key) >= limit then
  return 0
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return 1
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisRateLimiter comparte la ventana de verificacion entre instancias de la API.
type redisRateLimiter struct {
	client  redisEvaler
	window  time.Duration
	max     int
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisRateLimiter devuelve nil sin cliente. Si Redis falla, deja pasar la solicitud.
func NewRedisRateLimiter(client *redis.Client, window time.Duration, max int) RateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRateLimiter{
		client:  client,
		window:  window,
		max:     max,
		prefix:  "verify:rl:",
		timeout: 500 * time.Millisecond,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *redisRateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	email := normalizeEmail(key)
	if email == "" {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	allowed, err := l.client.Eval(ctx, slidingWindowScript, []string{l.prefix + email},
		l.now().UnixMilli(),
		l.window.Milliseconds(),
		l.max,
		uuid.NewString(),
	).Int()
	if err != nil {
		return true
	}
	return allowed == 1
}
