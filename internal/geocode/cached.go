package geocode

import (
	"context"
	"sverigekartan/internal/logger"
	"sverigekartan/internal/metrics"
)

// 文档注释：带两级缓存的逆地理编码
// 背景：先查进程内 LRU，再查 Redis，最后请求上游；成功结果回填两级缓存，失败不缓存。
type CachedReverser struct {
	Next      Reverser
	LRU       *LRU[Address]
	Redis     *RedisCache
	Precision int
}

func (c *CachedReverser) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	p := c.Precision
	if p <= 0 {
		p = DefaultPrecision
	}
	k := cacheKey(lat, lon, p)
	if c.LRU != nil {
		if a, ok := c.LRU.Get(k); ok {
			metrics.GeocodeCacheHitsTotal.WithLabelValues("lru").Inc()
			return a, nil
		}
	}
	a, ok, err := c.Redis.Get(ctx, k)
	if err != nil {
		logger.L().Debug("geocode_redis_get_error", "key", k, "err", err)
	}
	if ok {
		metrics.GeocodeCacheHitsTotal.WithLabelValues("redis").Inc()
		if c.LRU != nil {
			c.LRU.Set(k, a)
		}
		return a, nil
	}
	a, err = c.Next.Reverse(ctx, lat, lon)
	if err != nil {
		return Address{}, err
	}
	if c.LRU != nil {
		c.LRU.Set(k, a)
	}
	if err := c.Redis.Set(ctx, k, a); err != nil {
		logger.L().Debug("geocode_redis_set_error", "key", k, "err", err)
	}
	return a, nil
}
