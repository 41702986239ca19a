package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipethread/internal/db"
	"recipethread/internal/logger"
	"recipethread/internal/middleware"
	"recipethread/internal/router"
	"recipethread/internal/services"
	"recipethread/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// serveCmd 启动服务命令
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(a.db); err != nil {
			return err
		}
	}
	gin.SetMode(cfg.App.Mode)

	backend, err := services.NewBackend(a.db, cfg.Discussion, a.log)
	if err != nil {
		return err
	}

	var idem utils.IdempotencyStore
	switch cfg.Idempotency.Store {
	case "redis":
		rdb, err := db.OpenRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		idem = utils.NewRedisIdempotencyStore(rdb)
	default:
		mem, err := utils.NewMemoryIdempotencyStore(cfg.Idempotency.Capacity)
		if err != nil {
			return err
		}
		idem = mem
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Prune.Enabled {
		pruner, err := services.NewPruneService(backend.CommentStore, cfg.Prune, logger.Named("prune"))
		if err != nil {
			return err
		}
		backend.SetPruner(pruner)
		if err := pruner.Start(ctx); err != nil {
			return err
		}
		defer pruner.Stop()
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		if limiter, err = middleware.NewRateLimiter(cfg.RateLimit); err != nil {
			return err
		}
	}

	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	engine := router.New(router.Deps{
		Config:      cfg,
		Backend:     backend,
		Idempotency: idem,
		Auth:        middleware.NewAuthenticator(cfg.Auth),
		Limiter:     limiter,
		DB:          sqlDB,
	})

	srv := &http.Server{
		Addr:    cfg.App.Addr(),
		Handler: engine,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.log.Info("服务已启动",
		zap.String("addr", srv.Addr),
		zap.String("idempotency_store", cfg.Idempotency.Store),
		zap.Bool("prune", cfg.Prune.Enabled),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP服务启动失败: %w", err)
	case <-ctx.Done():
	}
	a.log.Info("关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务关闭异常: %w", err)
	}
	a.log.Info("服务已关闭")
	return nil
}
