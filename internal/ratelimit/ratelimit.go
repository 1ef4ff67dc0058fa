// Package ratelimit guards the write-heavy endpoints with fixed-window
// counters in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config caps the two per-user actions worth limiting: message sends and
// directory searches.
type Config struct {
	MessageLimit  int
	MessageWindow time.Duration
	SearchLimit   int
	SearchWindow  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MessageLimit:  60,
		MessageWindow: 60 * time.Second,
		SearchLimit:   120,
		SearchWindow:  60 * time.Second,
	}
}

type Limiter struct {
	client *goredis.Client
	config Config
}

// Result reports the outcome of a limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewLimiter(client *goredis.Client, config Config) *Limiter {
	return &Limiter{client: client, config: config}
}

// AllowMessage checks whether userID may send another message.
func (r *Limiter) AllowMessage(ctx context.Context, userID string) (*Result, error) {
	key := fmt.Sprintf("gigchat:ratelimit:%s:messages", userID)
	return r.checkLimit(ctx, key, r.config.MessageLimit, r.config.MessageWindow)
}

// AllowSearch checks whether userID may run another directory search.
func (r *Limiter) AllowSearch(ctx context.Context, userID string) (*Result, error) {
	key := fmt.Sprintf("gigchat:ratelimit:%s:search", userID)
	return r.checkLimit(ctx, key, r.config.SearchLimit, r.config.SearchWindow)
}

// checkLimit does an atomic increment-and-check via a Lua script so two
// concurrent requests cannot both claim the last slot.
func (r *Limiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	script := goredis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('GET', key)
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		local ttl = redis.call('TTL', key)
		if ttl < 0 then
			ttl = window
		end

		if current < limit then
			redis.call('INCR', key)
			if ttl == window then
				redis.call('EXPIRE', key, window)
			end
			return {1, limit - current - 1, ttl}
		else
			return {0, 0, ttl}
		end
	`)

	result, err := script.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	resetIn, _ := values[2].(int64)

	return &Result{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(resetIn) * time.Second,
		Limit:     limit,
	}, nil
}
