package enhancer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// Cache memoizes enhancements in Redis keyed by
// (user_id, field_name, text_hash, scope). A reverse key per interaction
// supports demotion when the user rejects a suggestion. All failures degrade
// to a miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates the enhancer cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(userID, fieldName, textHash, scope string) string {
	return fmt.Sprintf("enhancer:%s:%s:%s:%s", userID, fieldName, textHash, scope)
}

func reverseKey(interactionID string) string {
	return "enhancer:interaction:" + interactionID
}

// Get returns the cached result, or nil on miss or error.
func (c *Cache) Get(ctx context.Context, userID, fieldName, textHash, scope string) *EnhanceResult {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, cacheKey(userID, fieldName, textHash, scope)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("enhancer cache read failed", "error", err.Error())
		}
		return nil
	}
	var out EnhanceResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}

// Put stores the result plus the interaction reverse pointer.
func (c *Cache) Put(ctx context.Context, userID, fieldName, textHash, scope string, result *EnhanceResult) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	key := cacheKey(userID, fieldName, textHash, scope)
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.Warn("enhancer cache write failed", "error", err.Error())
		return
	}
	if err := c.client.Set(ctx, reverseKey(result.InteractionID), key, c.ttl).Err(); err != nil {
		logger.Warn("enhancer cache write failed", "error", err.Error())
	}
}

// Demote drops the cached entry behind a rejected interaction.
func (c *Cache) Demote(ctx context.Context, interactionID string) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.client.Get(ctx, reverseKey(interactionID)).Result()
	if err != nil {
		return
	}
	if err := c.client.Del(ctx, key, reverseKey(interactionID)).Err(); err != nil {
		logger.Warn("enhancer cache demote failed", "error", err.Error())
	}
}
