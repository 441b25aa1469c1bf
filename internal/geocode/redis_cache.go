package geocode

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/carnest-gateway/internal/models"
)

// RedisCache implements Cache on Redis so several gateway instances share
// one suggestion cache. Failures degrade to a miss; the geocoder is always
// reachable directly.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	ctx    context.Context
}

func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, ttl: ttl, ctx: context.Background()}
}

func (c *RedisCache) Get(query string) ([]models.Place, bool) {
	raw, err := c.client.Get(c.ctx, cacheKey(query)).Bytes()
	if err != nil {
		return nil, false
	}
	var places []models.Place
	if err := json.Unmarshal(raw, &places); err != nil {
		return nil, false
	}
	return places, true
}

func (c *RedisCache) Set(query string, places []models.Place) {
	b, err := json.Marshal(places)
	if err != nil {
		return
	}
	_ = c.client.Set(c.ctx, cacheKey(query), b, c.ttl).Err()
}

func cacheKey(query string) string { return "geocode:q:" + query }
