package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"annadata-backend/internal/models"
)

// RedisWeatherCache keeps recent weather lookups for a short TTL.
// Redis failures are logged and treated as cache misses.
type RedisWeatherCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisWeatherCache(client *redis.Client, ttl time.Duration) *RedisWeatherCache {
	return &RedisWeatherCache{redis: client, ttl: ttl}
}

func weatherCacheKey(location string) string {
	return "weather:" + strings.Join(strings.Fields(strings.ToLower(location)), " ")
}

func (c *RedisWeatherCache) Get(ctx context.Context, location string) (*models.WeatherResult, bool) {
	raw, err := c.redis.Get(ctx, weatherCacheKey(location)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("weather cache get failed: %v", err)
		}
		return nil, false
	}

	var result models.WeatherResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *RedisWeatherCache) Set(ctx context.Context, location string, result *models.WeatherResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, weatherCacheKey(location), data, c.ttl).Err(); err != nil {
		log.Printf("weather cache set failed: %v", err)
	}
}
