package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

var RDB *redis.Client

// OpenRedis 创建客户端并 Ping 一次。
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// InitRedis 初始化全局 Redis 客户端，失败时退出进程。
func InitRedis(addr, password string, db int) {
	rdb, err := OpenRedis(context.Background(), addr, password, db)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	RDB = rdb
	log.Info("Redis client connected successfully")
}
