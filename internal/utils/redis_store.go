package utils

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "recipethread:idem:"

// RedisIdempotencyStore 多实例部署共享的幂等存储
type RedisIdempotencyStore struct {
	rdb redis.Cmdable
}

// NewRedisIdempotencyStore 基于已有的 Redis 客户端创建
func NewRedisIdempotencyStore(rdb redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb}
}

func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) (uint, bool, error) {
	val, err := s.rdb.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return uint(id), true, nil
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, key string, commentID uint, ttl time.Duration) error {
	return s.rdb.Set(ctx, idempotencyPrefix+key, FormatID(commentID), ttl).Err()
}
