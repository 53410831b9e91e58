// Package quota rations calls to paid sources over a calendar month.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrExhausted = errors.New("monthly quota exhausted")

// Counter consumes one unit of a named monthly quota. Take returns
// ErrExhausted once the limit for the current month has been reached.
type Counter interface {
	Take(ctx context.Context, key string) error
	Used(ctx context.Context, key string) (int64, error)
}

// Limits maps a quota key to its monthly limit. A missing or zero limit
// means unlimited.
type Limits map[string]int64

func period(now time.Time) string {
	return now.UTC().Format("2006-01")
}

// periodEnd is the start of the next calendar month in UTC.
func periodEnd(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}

// MemoryCounter keeps the current month's usage only. The first Take of a
// new month drops the previous one.
type MemoryCounter struct {
	mu     sync.Mutex
	limits Limits
	period string
	used   map[string]int64
	now    func() time.Time
}

func NewMemoryCounter(limits Limits) *MemoryCounter {
	return &MemoryCounter{
		limits: limits,
		used:   make(map[string]int64),
		now:    time.Now,
	}
}

func (c *MemoryCounter) Take(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := period(c.now()); p != c.period {
		c.period = p
		c.used = make(map[string]int64)
	}
	limit := c.limits[key]
	if limit > 0 && c.used[key] >= limit {
		return fmt.Errorf("%w: %s used %d of %d", ErrExhausted, key, c.used[key], limit)
	}
	c.used[key]++
	return nil
}

func (c *MemoryCounter) Used(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if period(c.now()) != c.period {
		return 0, nil
	}
	return c.used[key], nil
}

// RedisCounter shares quota usage across instances. Each month gets its own
// key which expires when the month ends.
type RedisCounter struct {
	client *redis.Client
	limits Limits
	prefix string
	now    func() time.Time
}

func NewRedisCounter(client *redis.Client, limits Limits) *RedisCounter {
	return &RedisCounter{
		client: client,
		limits: limits,
		prefix: "quota:",
		now:    time.Now,
	}
}

func (c *RedisCounter) key(key string) string {
	return c.prefix + key + ":" + period(c.now())
}

// Take increments and sets the expiry in one transaction, so a counter never
// outlives its month.
func (c *RedisCounter) Take(ctx context.Context, key string) error {
	k := c.key(key)
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireAt(ctx, k, periodEnd(c.now()).Add(time.Hour))
		return nil
	})
	if err != nil {
		return fmt.Errorf("quota incr %s: %w", k, err)
	}

	limit := c.limits[key]
	if n := incr.Val(); limit > 0 && n > limit {
		if err := c.client.Decr(ctx, k).Err(); err != nil {
			log.Printf("[quota] failed to release %s, usage overcounted by one: %v", k, err)
		}
		return fmt.Errorf("%w: %s used %d of %d", ErrExhausted, key, limit, limit)
	}
	return nil
}

func (c *RedisCounter) Used(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, c.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
