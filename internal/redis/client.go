// Package redis owns the process-wide Redis client used by the heartbeat
// store, the event bus, and the rate limiter.
package redis

import (
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"gigchat/config"
)

var (
	client     *goredis.Client
	clientOnce sync.Once
)

// Initialize creates the global client. Safe to call more than once; only
// the first call connects.
func Initialize(cfg *config.Config) {
	clientOnce.Do(func() {
		client = NewClient(cfg)
	})
}

// GetClient returns the singleton client. Panics if Initialize was not
// called first.
func GetClient() *goredis.Client {
	if client == nil {
		panic("redis client not initialized. Call Initialize() first")
	}
	return client
}

// NewClient builds a standalone client.
func NewClient(cfg *config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
	})
}
