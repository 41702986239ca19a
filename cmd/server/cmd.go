package main

import (
	"fmt"
	"os"

	"recipethread/internal/config"
	"recipethread/internal/db"
	"recipethread/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var configPath string

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "菜谱评论服务",
	Long:          `菜谱评论区后端：楼中楼评论、投票、占位评论清理`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "配置文件目录（读取其中的 config.yaml）")

	rootCmd.AddCommand(serveCmd, migrateCmd, pruneCmd, tokenCmd)
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 子命令共享的运行环境
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

// bootstrap 加载配置、初始化日志并连接数据库
func bootstrap() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("配置初始化失败: %w", err)
	}
	log := logger.Init(&cfg.Log)

	conn, err := db.Open(&cfg.Database, log.Named("db"))
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, db: conn}, nil
}

func (a *app) close() {
	if err := db.Close(a.db); err != nil {
		a.log.Warn("关闭数据库失败", zap.Error(err))
	}
	_ = logger.Sync()
}
