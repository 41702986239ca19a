package db

import (
	"context"
	"fmt"
	"time"

	"recipethread/internal/config"

	"github.com/redis/go-redis/v9"
)

// OpenRedis 创建 Redis 客户端并测试连接
func OpenRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接redis失败: %w", err)
	}
	return client, nil
}
