package router

import (
	"context"

	"recipethread/internal/config"
	"recipethread/internal/handlers"
	"recipethread/internal/logger"
	"recipethread/internal/metrics"
	"recipethread/internal/middleware"
	"recipethread/internal/services"
	"recipethread/internal/utils"

	"github.com/gin-gonic/gin"
)

// Deps 路由依赖
type Deps struct {
	Config      *config.Config
	Backend     *services.Backend
	Idempotency utils.IdempotencyStore
	Auth        *middleware.Authenticator
	Limiter     *middleware.RateLimiter // 为 nil 时不限流
	DB          interface {
		PingContext(ctx context.Context) error
	}
}

// New 创建带全局中间件的 gin 引擎并注册路由
func New(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinLogger(), logger.GinRecovery(), metrics.Middleware())
	r.Use(middleware.Cors(deps.Config.Cors))
	RegisterRoutes(r, deps)
	return r
}

func RegisterRoutes(r *gin.Engine, deps Deps) {
	handlers.RegisterValidators()

	// Handlers
	commentHandler := handlers.NewCommentHandler(deps.Backend, deps.Idempotency, deps.Config.Idempotency.TTL)
	voteHandler := handlers.NewVoteHandler(deps.Backend.ReactionLedger)

	// 运维路由
	if deps.DB != nil {
		r.GET("/healthz", handlers.Healthz(deps.DB)) // 健康检查
	}
	r.GET("/metrics", metrics.Handler()) // Prometheus 指标

	api := r.Group("/api")
	api.Use(deps.Auth.LoadUser(), middleware.AuthRequired())

	// 读接口
	{
		api.GET("/recipes/:rid/comments", commentHandler.ListTopLevel)            // 顶层评论
		api.GET("/recipes/:rid/comments/:id/replies", commentHandler.ListReplies) // 直接回复
		api.GET("/comments/:id", commentHandler.Get)                              // 单条评论
		api.GET("/comments/:id/vote", voteHandler.Get)                            // 我的投票
	}

	// 写接口，按用户限流
	writes := api.Group("")
	if deps.Limiter != nil {
		writes.Use(deps.Limiter.Middleware())
	}
	{
		writes.POST("/recipes/:rid/comments", commentHandler.Create) // 发表评论或回复
		writes.PATCH("/comments/:id", commentHandler.Edit)           // 编辑评论
		writes.DELETE("/comments/:id", commentHandler.Delete)        // 删除评论

		writes.PUT("/comments/:id/vote", voteHandler.Cast)           // 投票
		writes.DELETE("/comments/:id/vote", voteHandler.Clear)       // 取消投票
		writes.POST("/comments/:id/vote/toggle", voteHandler.Toggle) // 切换投票
	}
}
