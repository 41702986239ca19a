package utils

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem 包装缓存数据和过期时间
type cacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// Cache 带过期时间的本地 LRU 缓存
type Cache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	now      func() time.Time
}

// NewCache 创建指定容量的缓存
func NewCache[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = 500
	}
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lruCache: l, now: time.Now}, nil
}

// Set 设置缓存，TTL 为过期时间
func (c *Cache[V]) Set(key string, data V, ttl time.Duration) {
	c.lruCache.Add(key, cacheItem[V]{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，不存在或已过期时 ok 为 false
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}

	// 检查过期
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}
	return val.Data, true
}

// Delete 删除指定缓存
func (c *Cache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

// Len 当前条目数（含未清理的过期条目）
func (c *Cache[V]) Len() int {
	return c.lruCache.Len()
}

// IdempotencyStore 幂等键到评论 ID 的映射
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (uint, bool, error)
	Remember(ctx context.Context, key string, commentID uint, ttl time.Duration) error
}

// MemoryIdempotencyStore 单实例部署使用的本地实现
type MemoryIdempotencyStore struct {
	mu    sync.Mutex
	cache *Cache[uint]
}

// NewMemoryIdempotencyStore 创建本地幂等存储
func NewMemoryIdempotencyStore(capacity int) (*MemoryIdempotencyStore, error) {
	c, err := NewCache[uint](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryIdempotencyStore{cache: c}, nil
}

func (s *MemoryIdempotencyStore) Lookup(_ context.Context, key string) (uint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.cache.Get(key)
	return id, ok, nil
}

func (s *MemoryIdempotencyStore) Remember(_ context.Context, key string, commentID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, commentID, ttl)
	return nil
}
