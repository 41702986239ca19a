package services

import (
	"context"
	"errors"

	"recipethread/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReactionLedger 记录每个用户对每条评论的投票，每对至多一行
type ReactionLedger struct {
	db *gorm.DB
}

func NewReactionLedger(db *gorm.DB) *ReactionLedger {
	return &ReactionLedger{db: db}
}

// WithTx 在给定事务中执行
func (l *ReactionLedger) WithTx(tx *gorm.DB) *ReactionLedger {
	return &ReactionLedger{db: tx}
}

// Transaction 在单个事务内执行一组投票操作
func (l *ReactionLedger) Transaction(ctx context.Context, fn func(txLedger *ReactionLedger) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(l.WithTx(tx))
	})
}

// GetUserVote 返回当前投票值，未投票返回 0
func (l *ReactionLedger) GetUserVote(ctx context.Context, commentID uint, userID uuid.UUID) (int, error) {
	var r models.Reaction
	err := l.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.VoteNone, nil
	}
	if err != nil {
		return 0, translateErr("vote.get", err)
	}
	return r.Value, nil
}

// ClearVote 删除投票，不存在时也返回成功
func (l *ReactionLedger) ClearVote(ctx context.Context, commentID uint, userID uuid.UUID) error {
	err := l.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Delete(&models.Reaction{}).Error
	return translateErr("vote.clear", err)
}

// CastVote 插入投票，必须先 ClearVote；已有投票时返回 ErrConflict
func (l *ReactionLedger) CastVote(ctx context.Context, commentID uint, userID uuid.UUID, value int) error {
	const op = "vote.cast"
	if !models.ValidVote(value) {
		return models.NewError(models.KindValidation, op, "vote value must be 1 or -1")
	}
	if userID == uuid.Nil {
		return models.NewError(models.KindValidation, op, "user id is required")
	}

	db := l.db.WithContext(ctx)
	var c models.Comment
	if err := db.Select("id", "deleted").First(&c, commentID).Error; err != nil {
		return translateErr(op, err)
	}
	if c.Deleted {
		return models.NewError(models.KindValidation, op, "cannot vote on a deleted comment")
	}

	var existing int64
	if err := db.Model(&models.Reaction{}).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Count(&existing).Error; err != nil {
		return translateErr(op, err)
	}
	if existing > 0 {
		return models.NewError(models.KindConflict, op, "vote already cast, clear it first")
	}

	r := models.Reaction{CommentID: commentID, UserID: userID, Value: value}
	return translateErr(op, db.Create(&r).Error)
}
