package db

import (
	"fmt"
	"sync/atomic"

	"recipethread/internal/config"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var memSeq atomic.Int64

// OpenMemory 打开独立的内存 SQLite 数据库并完成迁移，外键约束开启
// 仅用于测试与本地演示
func OpenMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:recipethread_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", memSeq.Add(1))
	conn, err := OpenDialector(sqlite.Open(dsn), &config.DatabaseConfig{
		LogLevel:     "silent",
		MaxOpenConns: 1,
	}, nil)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}
