package taxonomy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/metrics"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
)

const cacheKeyPrefix = "nonpayment:reasons:"

// CachedProvider fronts a Provider with Redis. Cache failures are logged and
// the source is read directly.
type CachedProvider struct {
	source Provider
	redis  *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewCachedProvider wraps source with a Redis cache.
func NewCachedProvider(source Provider, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedProvider {
	return &CachedProvider{
		source: source,
		redis:  client,
		ttl:    ttl,
		log:    log.Component("reason_cache"),
	}
}

func (c *CachedProvider) ListLevel1(ctx context.Context) ([]domain.ReasonNode, error) {
	return c.cached(ctx, cacheKeyPrefix+"l1", func() ([]domain.ReasonNode, error) {
		return c.source.ListLevel1(ctx)
	})
}

func (c *CachedProvider) ListLevel2(ctx context.Context, level1ID string) ([]domain.ReasonNode, error) {
	return c.cached(ctx, cacheKeyPrefix+"l2:"+level1ID, func() ([]domain.ReasonNode, error) {
		return c.source.ListLevel2(ctx, level1ID)
	})
}

func (c *CachedProvider) ListLevel3(ctx context.Context, level1ID, level2ID string) ([]domain.ReasonNode, error) {
	return c.cached(ctx, cacheKeyPrefix+"l3:"+level2ID, func() ([]domain.ReasonNode, error) {
		return c.source.ListLevel3(ctx, level1ID, level2ID)
	})
}

// Invalidate drops every cached reason list.
func (c *CachedProvider) Invalidate(ctx context.Context) error {
	iter := c.redis.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *CachedProvider) cached(ctx context.Context, key string, load func() ([]domain.ReasonNode, error)) ([]domain.ReasonNode, error) {
	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var nodes []domain.ReasonNode
		if jerr := json.Unmarshal(raw, &nodes); jerr == nil {
			metrics.ReasonCacheLookup("hit")
			return nodes, nil
		}
		c.log.Warn().Str("key", key).Msg("Discarding undecodable cached reasons")
	case err == redis.Nil:
		metrics.ReasonCacheLookup("miss")
	default:
		metrics.ReasonCacheLookup("error")
		c.log.Warn().Err(err).Str("key", key).Msg("Reason cache read failed")
	}

	nodes, err := load()
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []domain.ReasonNode{}
	}

	if data, jerr := json.Marshal(nodes); jerr == nil {
		if serr := c.redis.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.log.Warn().Err(serr).Str("key", key).Msg("Reason cache write failed")
		}
	}
	return nodes, nil
}
