package data

import (
	"context"
	"encoding/json"
	"time"

	"tavernchat/cmd/context-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// ResultCache Redis 裁剪结果缓存。缓存永不作为权威数据：读失败或
// 反序列化失败一律按未命中处理，由上层重算。
type ResultCache struct {
	redis *redis.Client
	log   *log.Helper
}

// NewResultCache 创建结果缓存
func NewResultCache(client *redis.Client, logger log.Logger) *ResultCache {
	return &ResultCache{
		redis: client,
		log:   log.NewHelper(log.With(logger, "module", "result-cache")),
	}
}

// Get 读取缓存的裁剪结果
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.PruningResult, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithContext(ctx).Warnf("redis get error, treating as miss: %v", err)
		return nil, false
	}

	var result domain.PruningResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.log.WithContext(ctx).Warnf("corrupt cache entry, treating as miss: %v", err)
		return nil, false
	}
	return &result, true
}

// Set 写入裁剪结果
func (c *ResultCache) Set(ctx context.Context, key string, result *domain.PruningResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, ttl).Err()
}
