package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/productimages/internal/pkg/env"
)

var (
	client    *redis.Client
	available bool
	ctx       = context.Background()
)

// Addr returns the configured cache address
func Addr() string {
	return fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
}

// SetupCache initializes the connection to the redis compatible cache server
func SetupCache() {
	client = redis.NewClient(&redis.Options{
		Addr:     Addr(),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		available = false
		log.Warnf("[Cache] Could not connect to cache at %s: %v", Addr(), err)
		return
	}
	available = true
	log.Infof("[Cache] Connected to cache: %s", pong)
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Available reports whether the last connection attempt succeeded
func Available() bool {
	GetClient()
	return available
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// Store exposes Get and Set to components that take a cache interface
type Store struct{}

func (Store) Get(key string) (string, error) {
	return Get(key)
}

func (Store) Set(key string, value interface{}, expiration time.Duration) error {
	return Set(key, value, expiration)
}
