package legal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// Cache stores verdicts keyed by (task, channel, canonical content) in Redis.
// A nil client disables caching; Redis errors degrade to a miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a verdict cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// canonical collapses whitespace so formatting-only edits share a verdict.
func canonical(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

func cacheKey(task, channel, content string) string {
	sum := sha256.Sum256([]byte(canonical(content)))
	return fmt.Sprintf("legal:%s:%s:%s", task, channel, hex.EncodeToString(sum[:]))
}

// Get returns the cached verdict, or nil on miss or cache failure.
func (c *Cache) Get(ctx context.Context, task, channel, content string) *Result {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, cacheKey(task, channel, content)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("legal cache read failed", "error", err.Error())
		}
		return nil
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		logger.Warn("legal cache entry corrupt", "error", err.Error())
		return nil
	}
	return &res
}

// Put stores a verdict. Failures are logged and swallowed.
func (c *Cache) Put(ctx context.Context, task, channel, content string, res *Result) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(task, channel, content), raw, c.ttl).Err(); err != nil {
		logger.Warn("legal cache write failed", "error", err.Error())
	}
}
