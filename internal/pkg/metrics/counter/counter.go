// Package counter keeps lookup hit counters in a redis hash.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const lookupsKey = "productimages:counters:lookups"

// Counter counts lookups per variant key and outcome
type Counter struct {
	client *redis.Client
	key    string
}

// New returns a counter on client
func New(client *redis.Client) *Counter {
	return &Counter{client: client, key: lookupsKey}
}

func field(key string, found bool) string {
	if found {
		return key + ":found"
	}
	return key + ":missing"
}

// Hit records one lookup of key
func (c *Counter) Hit(ctx context.Context, key string, found bool) error {
	return c.client.HIncrBy(ctx, c.key, field(key, found), 1).Err()
}

// Totals returns the current counters without resetting them
func (c *Counter) Totals(ctx context.Context) (map[string]int64, error) {
	data, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// Drain returns the counters and resets them. The hash is renamed before
// it is read so increments arriving meanwhile start a fresh hash.
func (c *Counter) Drain(ctx context.Context) (map[string]int64, error) {
	tmpKey := fmt.Sprintf("%s:tmp:%d", c.key, time.Now().UnixNano())
	if err := c.client.Rename(ctx, c.key, tmpKey).Err(); err != nil {
		if errors.Is(err, redis.Nil) || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return map[string]int64{}, nil
		}
		return nil, err
	}
	defer c.client.Del(ctx, tmpKey)

	data, err := c.client.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}
