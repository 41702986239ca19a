package middleware

import (
	"net/http"
	"sync"

	"recipethread/internal/config"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const limiterPoolSize = 10000

// RateLimiter 按用户限流，未登录请求按客户端 IP 计
type RateLimiter struct {
	mu    sync.Mutex
	pool  *lru.Cache[string, *rate.Limiter]
	rps   rate.Limit
	burst int
}

func NewRateLimiter(cfg config.RateLimitConfig) (*RateLimiter, error) {
	pool, err := lru.New[string, *rate.Limiter](limiterPoolSize)
	if err != nil {
		return nil, err
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{pool: pool, rps: rate.Limit(rps), burst: burst}, nil
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.pool.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.pool.Add(key, lim)
	return lim
}

// Allow 消耗一个令牌
func (l *RateLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Middleware 超出限额返回 429
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id, ok := CurrentUser(c); ok {
			key = "user:" + id.String()
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "kind": "rate_limited"})
			return
		}
		c.Next()
	}
}
