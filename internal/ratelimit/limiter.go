package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("redis unavailable")

type Decision struct {
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter int // Seconds
	Allowed    bool
}

type LimitConfig struct {
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
}

// Enabled reports whether the config describes an actual limit.
func (c LimitConfig) Enabled() bool {
	return c.Rate > 0 && c.Window > 0
}

// INCR and set the expiry on the first hit of a window.
var fixedWindow = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if tonumber(current) == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return {current, redis.call("PTTL", KEYS[1])}
`)

type Limiter struct {
	client *redis.Client
	prefix string
}

func NewLimiter(client *redis.Client, prefix string) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{client: client, prefix: prefix}
}

// CheckRateLimit counts one hit against key in a fixed window that starts
// at the first hit.
func (l *Limiter) CheckRateLimit(ctx context.Context, key string, config LimitConfig) (*Decision, error) {
	res, err := fixedWindow.Run(ctx, l.client, []string{l.prefix + ":" + key}, config.Window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		return nil, ErrRedisUnavailable
	}
	count, ttlMs := int(res[0]), res[1]
	if ttlMs < 0 {
		ttlMs = config.Window.Milliseconds()
	}

	remaining := config.Rate - count
	if remaining < 0 {
		remaining = 0
	}
	ttl := time.Duration(ttlMs) * time.Millisecond
	retry := int((ttl + time.Second - 1) / time.Second)

	return &Decision{
		Limit:      config.Rate,
		Remaining:  remaining,
		Reset:      time.Now().Add(ttl),
		RetryAfter: retry,
		Allowed:    count <= config.Rate,
	}, nil
}
