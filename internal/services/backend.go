package services

import (
	"recipethread/internal/config"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Backend 评论存储与投票账本的组合，满足控制器所需的全部数据访问
type Backend struct {
	*CommentStore
	*ReactionLedger
}

// NewBackend 按评论策略配置创建数据库后端
func NewBackend(db *gorm.DB, cfg config.DiscussionConfig, log *zap.Logger) (*Backend, error) {
	filter, err := NewContentFilter(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	store := NewCommentStore(db, filter,
		WithCountDeletedChildren(cfg.CountDeletedChildren),
		WithStoreLogger(log.Named("comments")),
	)
	return &Backend{
		CommentStore:   store,
		ReactionLedger: NewReactionLedger(db),
	}, nil
}
