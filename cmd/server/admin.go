package main

import (
	"fmt"
	"time"

	"recipethread/internal/config"
	"recipethread/internal/db"
	"recipethread/internal/middleware"
	"recipethread/internal/services"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd 只执行表结构迁移
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "迁移数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()
		if err := db.Migrate(a.db); err != nil {
			return err
		}
		a.log.Info("数据库迁移完成")
		return nil
	},
}

// pruneCmd 执行一次占位评论清理后退出
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "清理已无回复的已删除评论",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		backend, err := services.NewBackend(a.db, a.cfg.Discussion, a.log)
		if err != nil {
			return err
		}
		svc, err := services.NewPruneService(backend.CommentStore, a.cfg.Prune, a.log.Named("prune"))
		if err != nil {
			return err
		}
		n, err := svc.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		a.log.Info("占位评论清理完成", zap.Int("pruned", n))
		fmt.Printf("pruned %d placeholder comments\n", n)
		return nil
	},
}

var tokenTTL time.Duration

// tokenCmd 为本地调试签发访问令牌
// 示例：./server token 6f1c1a52-8c1e-4d55-9a51-0a3e7d5b2c11 --ttl 1h
var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "签发调试用访问令牌",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not configured")
		}
		token, err := middleware.NewAuthenticator(cfg.Auth).Issue(userID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "令牌有效期")
}
