package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recipethread",
		Name:      "comments_created_total",
		Help:      "Comments created, by top_level or reply.",
	}, []string{"kind"})

	CommentsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recipethread",
		Name:      "comments_deleted_total",
		Help:      "Comment deletions, by hard or soft outcome.",
	}, []string{"mode"})

	Votes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recipethread",
		Name:      "votes_total",
		Help:      "Vote toggles, by resulting action.",
	}, []string{"action"})

	PlaceholdersPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recipethread",
		Name:      "placeholders_pruned_total",
		Help:      "Soft-deleted comments removed after their last reply disappeared.",
	})

	PruneQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recipethread",
		Name:      "prune_queue_dropped_total",
		Help:      "Prune requests dropped because the queue was full.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recipethread",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// VoteAction 把投票结果映射为指标标签
func VoteAction(result int) string {
	switch result {
	case 1:
		return "up"
	case -1:
		return "down"
	}
	return "cleared"
}

// Middleware 记录请求耗时，路由使用注册时的模板路径
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 输出
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
