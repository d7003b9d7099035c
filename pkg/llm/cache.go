package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

const cacheKeyPrefix = "llm:completion:"

// cachedClient 将 temperature 为 0 的生成结果缓存在 Redis 中。
type cachedClient struct {
	next Client
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedClient 包装 next。rdb 为 nil 或 ttl 不为正时直接返回 next。
func NewCachedClient(next Client, rdb *redis.Client, ttl time.Duration) Client {
	if rdb == nil || ttl <= 0 {
		return next
	}
	return &cachedClient{next: next, rdb: rdb, ttl: ttl}
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Generate 优先读取缓存；Redis 不可用时降级为直接调用，不影响主流程。
func (c *cachedClient) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if temperature != 0 {
		return c.next.Generate(ctx, prompt, temperature)
	}

	key := cacheKey(prompt)
	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		log.Debugf("[LLMCache] 命中缓存, key: %s", key)
		return cached, nil
	case !errors.Is(err, redis.Nil):
		log.Warnf("[LLMCache] 读取缓存失败, 直接调用 LLM: %v", err)
	}

	out, err := c.next.Generate(ctx, prompt, temperature)
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, key, out, c.ttl).Err(); err != nil {
		log.Warnf("[LLMCache] 写入缓存失败: %v", err)
	}
	return out, nil
}
