package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// 文档注释：Redis 共享缓存层
// 背景：多实例部署或进程重启后复用逆地理编码结果；Redis 不可用时按未命中处理，不影响主流程。
// 约束：值为 Address 的 JSON；键前缀 sk:rev:。
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if rdb == nil {
		return nil
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "sk:rev:"}
}

func (c *RedisCache) Get(ctx context.Context, k string) (Address, bool, error) {
	if c == nil {
		return Address{}, false, nil
	}
	b, err := c.rdb.Get(ctx, c.prefix+k).Bytes()
	if errors.Is(err, redis.Nil) {
		return Address{}, false, nil
	}
	if err != nil {
		return Address{}, false, err
	}
	var a Address
	if err := json.Unmarshal(b, &a); err != nil {
		return Address{}, false, err
	}
	return a, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k string, a Address) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+k, b, c.ttl).Err()
}
