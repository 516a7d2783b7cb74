// Package ratelimit provides a Redis-backed counter for go-chi/httprate so
// several keywarden instances can share one per-IP request budget.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every counter key.
const DefaultPrefix = "keywarden:ratelimit:"

// opTimeout bounds each Redis round trip. httprate's counter interface does
// not carry a request context.
const opTimeout = 500 * time.Millisecond

var _ httprate.LimitCounter = (*RedisCounter)(nil)

// RedisCounter implements httprate.LimitCounter with one Redis key per
// (client key, window). Keys expire after three windows, long enough for the
// sliding-window estimate to read the previous window.
type RedisCounter struct {
	client       redis.UniversalClient
	prefix       string
	windowLength time.Duration
}

// NewRedisCounter creates a counter on client. An empty prefix selects
// DefaultPrefix.
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisCounter{
		client:       client,
		prefix:       prefix,
		windowLength: time.Minute,
	}
}

// Config is called by httprate with the limiter's window.
func (c *RedisCounter) Config(requestLimit int, windowLength time.Duration) {
	c.windowLength = windowLength
}

// Increment adds one request to key's current window.
func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

// IncrementBy adds amount requests to key's current window.
func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	k := c.windowKey(key, currentWindow)
	pipe := c.client.TxPipeline()
	pipe.IncrBy(ctx, k, int64(amount))
	pipe.Expire(ctx, k, c.windowLength*3)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ratelimit increment: %w", err)
	}
	return nil
}

// Get returns the request counts for key's current and previous windows.
func (c *RedisCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	vals, err := c.client.MGet(ctx, c.windowKey(key, currentWindow), c.windowKey(key, previousWindow)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit get: %w", err)
	}

	curr, err := parseCount(vals[0])
	if err != nil {
		return 0, 0, err
	}
	prev, err := parseCount(vals[1])
	if err != nil {
		return 0, 0, err
	}
	return curr, prev, nil
}

func (c *RedisCounter) windowKey(key string, window time.Time) string {
	return c.prefix + key + ":" + strconv.FormatInt(window.Unix(), 10)
}

// parseCount converts an MGET value; missing keys come back as nil.
func parseCount(v interface{}) (int, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("ratelimit: unexpected value type %T", v)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: parse count %q: %w", s, err)
	}
	return n, nil
}
