// Package cache provides a Redis-backed daily price cache. The cache is
// best effort: a nil client or a Redis error degrades to a miss.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PriceCache caches token prices keyed by (token address, UTC day).
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPriceCache connects to Redis and returns the cache. Returns nil if
// addr is empty or the server is unreachable; callers treat a nil cache
// as always-miss.
func NewPriceCache(addr, password string, ttl time.Duration) *PriceCache {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}

	return &PriceCache{client: client, ttl: ttl}
}

// Get returns the cached price for the token on the given day.
func (c *PriceCache) Get(ctx context.Context, tokenAddress, day string) (float64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}

	val, err := c.client.Get(ctx, priceKey(tokenAddress, day)).Result()
	if err != nil {
		return 0, false
	}

	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// Set stores the price for the token on the given day.
func (c *PriceCache) Set(ctx context.Context, tokenAddress, day string, price float64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, priceKey(tokenAddress, day), strconv.FormatFloat(price, 'f', -1, 64), c.ttl).Err()
}

// Close releases the underlying connection.
func (c *PriceCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func priceKey(tokenAddress, day string) string {
	return fmt.Sprintf("price:%s:%s", tokenAddress, day)
}
