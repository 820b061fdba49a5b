package router

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"
)

// limiterDatabase keeps limiter counters apart from the job queue (DB 0)
const limiterDatabase = 3

// NewLimiterStorage returns a redis backed limiter storage on the server
// of client, or nil when client is nil.
func NewLimiterStorage(client *goredis.Client) fiber.Storage {
	if client == nil {
		return nil
	}
	opts := client.Options()
	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Username: opts.Username,
		Password: opts.Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}
