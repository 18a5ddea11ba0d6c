package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vineeth-0509/open-llm/internal/shared/models"
	"github.com/vineeth-0509/open-llm/internal/shared/redis"
)

// Cache keeps the offering set per model in Redis for a short TTL. The
// offering catalog changes rarely, so a stale window only delays price or
// availability updates; it never affects billing of an in-flight request,
// which uses the offering resolved at request start.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New creates a new offering cache instance
func New(redisClient *redis.Client, ttl time.Duration) *Cache {
	return &Cache{redis: redisClient, ttl: ttl}
}

func cacheKey(modelID int64) string {
	return fmt.Sprintf("cache:offerings:%d", modelID)
}

// Get retrieves the cached offering set for a model
func (c *Cache) Get(ctx context.Context, modelID int64) ([]models.ProviderOffering, error) {
	val, err := c.redis.Get(ctx, cacheKey(modelID))
	if err != nil {
		return nil, err
	}

	var offerings []models.ProviderOffering
	if err := json.Unmarshal([]byte(val), &offerings); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached offerings: %w", err)
	}

	return offerings, nil
}

// Set stores the offering set for a model
func (c *Cache) Set(ctx context.Context, modelID int64, offerings []models.ProviderOffering) error {
	data, err := json.Marshal(offerings)
	if err != nil {
		return fmt.Errorf("failed to serialize offerings: %w", err)
	}

	return c.redis.Set(ctx, cacheKey(modelID), string(data), c.ttl)
}
