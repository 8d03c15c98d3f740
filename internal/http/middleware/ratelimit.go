// This file implements per-endpoint rate limiting. Buckets are keyed by the
// authenticated user id when present, else by client IP. Two backends share
// one interface: a process-local token bucket (golang.org/x/time/rate) and a
// Redis Lua token bucket for deployments running several gateway replicas.
package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Quota is Limit requests per Per, refilled continuously.
type Quota struct {
	Limit int
	Per   time.Duration
}

// PerMinute returns a quota of n requests per minute.
func PerMinute(n int) Quota { return Quota{Limit: n, Per: time.Minute} }

func (q Quota) rate() float64 {
	if q.Per <= 0 {
		return float64(q.Limit)
	}
	return float64(q.Limit) / q.Per.Seconds()
}

// Limiter decides whether the bucket under key may spend one token.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the authenticated user id and falls back to the
// client IP. Prefixes keep the two namespaces apart.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := c.GetString(userIDKey); s != "" {
			return "user:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is the process-local Limiter. Idle buckets are evicted
// opportunistically. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter returns a local limiter enforcing q.
func NewRateLimiter(q Quota) *RateLimiter {
	burst := q.Limit
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(q.rate()),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns the limiter for key, creating it if absent. GC runs
// before the lookup so a stale bucket can be evicted even when requested.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Allow implements Limiter.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	return rl.getVisitor(key).Allow(), nil
}

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
else
  local delta = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return allowed
`

// RedisLimiter is a Limiter shared by every replica through Redis.
type RedisLimiter struct {
	client redis.Scripter
	script *redis.Script
	prefix string
	rate   float64
	burst  int
	ttl    time.Duration
}

// NewRedisLimiter returns a shared limiter enforcing q. Keys are namespaced
// with prefix.
func NewRedisLimiter(client redis.Scripter, prefix string, q Quota) *RedisLimiter {
	burst := q.Limit
	if burst <= 0 {
		burst = 1
	}
	r := q.rate()
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		prefix: prefix,
		rate:   r,
		burst:  burst,
		ttl:    bucketTTL(r, burst),
	}
}

// bucketTTL keeps a bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(burst)/rate*2))
	return time.Duration(seconds) * time.Second
}

// Allow implements Limiter.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("rate limiter key is empty")
	}
	n, err := rl.script.Run(ctx, rl.client, []string{rl.prefix + key},
		rl.rate, rl.burst, rl.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RateLimit enforces l for one endpoint. scope separates the buckets of
// different endpoints. Tester requests are not limited. Backend errors are
// logged and the request is let through.
func RateLimit(l Limiter, scope string) gin.HandlerFunc {
	keyFn := KeyByUserOrIP()
	return func(c *gin.Context) {
		if IsTester(c) {
			c.Next()
			return
		}
		allowed, err := l.Allow(c.Request.Context(), scope+":"+keyFn(c))
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail":   "rate limit exceeded",
				"code":     "RATE_LIMITED",
				"trace_id": TraceIDFrom(c),
			})
			return
		}
		c.Next()
	}
}
