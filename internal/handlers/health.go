package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// pinger 健康检查依赖
type pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz 数据库可用时返回 200
func Healthz(db pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
