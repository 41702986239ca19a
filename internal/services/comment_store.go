package services

import (
	"context"
	"errors"
	"fmt"

	"recipethread/internal/metrics"
	"recipethread/internal/models"
	"recipethread/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PruneScheduler 接收需要检查是否可以物理删除的占位评论
type PruneScheduler interface {
	ScheduleUpdate(commentID uint)
}

// CommentStore 评论的持久化，决定硬删除还是软删除
type CommentStore struct {
	db           *gorm.DB
	filter       *ContentFilter
	countDeleted bool
	pruner       PruneScheduler
	log          *zap.Logger
}

// StoreOption 可选配置
type StoreOption func(*CommentStore)

// WithCountDeletedChildren child_count 是否统计已软删除的子评论
func WithCountDeletedChildren(v bool) StoreOption {
	return func(s *CommentStore) { s.countDeleted = v }
}

// WithPruner 硬删除后调度父评论的占位清理
func WithPruner(p PruneScheduler) StoreOption {
	return func(s *CommentStore) { s.pruner = p }
}

// WithStoreLogger 注入日志
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *CommentStore) { s.log = l }
}

// NewCommentStore 创建评论存储，默认统计已删除的子评论
func NewCommentStore(db *gorm.DB, filter *ContentFilter, opts ...StoreOption) *CommentStore {
	s := &CommentStore{
		db:           db,
		filter:       filter,
		countDeleted: true,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPruner 在存储创建之后绑定清理服务
func (s *CommentStore) SetPruner(p PruneScheduler) {
	s.pruner = p
}

// Create 创建顶层评论或回复
func (s *CommentStore) Create(ctx context.Context, recipeID uint, parentID *uint, ownerID uuid.UUID, content string) (*models.CommentView, error) {
	const op = "comment.create"
	if recipeID == 0 {
		return nil, models.NewError(models.KindValidation, op, "recipe id is required")
	}
	if ownerID == uuid.Nil {
		return nil, models.NewError(models.KindValidation, op, "owner id is required")
	}
	text, err := s.filter.Clean(op, content)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		RecipeID: recipeID,
		ParentID: parentID,
		OwnerID:  ownerID,
		Content:  text,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentID != nil {
			var parent models.Comment
			if err := tx.Select("id", "recipe_id", "deleted").First(&parent, *parentID).Error; err != nil {
				return translateErr(op, err)
			}
			if parent.RecipeID != recipeID {
				return models.NewError(models.KindValidation, op, "parent comment belongs to another recipe")
			}
			if parent.Deleted {
				return models.NewError(models.KindValidation, op, "cannot reply to a deleted comment")
			}
		}
		return translateErr(op, tx.Create(&comment).Error)
	})
	if err != nil {
		return nil, err
	}

	metrics.CommentsCreated.WithLabelValues(replyKind(parentID)).Inc()
	s.log.Debug("comment created",
		zap.Uint("id", comment.ID),
		zap.Uint("recipe_id", recipeID),
		zap.Bool("reply", parentID != nil),
		zap.String("excerpt", utils.Truncate(comment.Content, 40)),
	)
	view := models.NewCommentView(&comment)
	return &view, nil
}

// Edit 修改正文，仅限作者且评论未删除
func (s *CommentStore) Edit(ctx context.Context, commentID uint, ownerID uuid.UUID, content string) error {
	const op = "comment.edit"
	text, err := s.filter.Clean(op, content)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND owner_id = ? AND deleted = ?", commentID, ownerID, false).
		Update("content", text)
	if res.Error != nil {
		return translateErr(op, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// 没有行被更新，查明原因
	var c models.Comment
	if err := s.db.WithContext(ctx).Select("id", "owner_id", "deleted").First(&c, commentID).Error; err != nil {
		return translateErr(op, err)
	}
	if c.Deleted {
		return models.NewError(models.KindValidation, op, "comment has been deleted")
	}
	if c.OwnerID != ownerID {
		return models.NewError(models.KindForbidden, op, "only the author can edit this comment")
	}
	return nil
}

// Delete 先尝试硬删除，仍有回复引用时降级为软删除
func (s *CommentStore) Delete(ctx context.Context, commentID uint) (bool, error) {
	const op = "comment.delete"
	var (
		hard     bool
		parentID *uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Comment
		if err := tx.Select("id", "parent_id", "deleted").First(&c, commentID).Error; err != nil {
			return translateErr(op, err)
		}
		parentID = c.ParentID

		err := hardDelete(tx, commentID)
		switch {
		case err == nil:
			hard = true
			return nil
		case errors.Is(err, models.ErrConflict):
			return translateErr(op, tx.Model(&models.Comment{}).Where("id = ?", commentID).Update("deleted", true).Error)
		default:
			return translateErr(op, err)
		}
	})
	if err != nil {
		return false, err
	}

	if hard {
		metrics.CommentsDeleted.WithLabelValues("hard").Inc()
		if parentID != nil && s.pruner != nil {
			s.pruner.ScheduleUpdate(*parentID)
		}
	} else {
		metrics.CommentsDeleted.WithLabelValues("soft").Inc()
	}
	s.log.Debug("comment deleted", zap.Uint("id", commentID), zap.Bool("hard", hard))
	return hard, nil
}

// PrunePlaceholder 物理删除已无子评论的软删除占位
// 返回是否删除以及其父评论 ID
func (s *CommentStore) PrunePlaceholder(ctx context.Context, commentID uint) (bool, *uint, error) {
	const op = "comment.prune"
	var (
		pruned   bool
		parentID *uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Comment
		if err := tx.Select("id", "parent_id", "deleted").First(&c, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return translateErr(op, err)
		}
		if !c.Deleted {
			return nil
		}
		parentID = c.ParentID

		err := hardDelete(tx, commentID)
		if errors.Is(err, models.ErrConflict) {
			return nil
		}
		if err != nil {
			return translateErr(op, err)
		}
		pruned = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if !pruned {
		return false, nil, nil
	}
	return true, parentID, nil
}

// ListPlaceholders 列出所有软删除的评论 ID，供定时清理使用
func (s *CommentStore) ListPlaceholders(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("deleted = ?", true).
		Order("id DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translateErr("comment.placeholders", err)
	}
	return ids, nil
}

// hardDelete 在保存点内删除评论及其投票，存在子评论时返回 ErrConflict
func hardDelete(tx *gorm.DB, commentID uint) error {
	return tx.Transaction(func(sp *gorm.DB) error {
		if err := sp.Where("comment_id = ?", commentID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		res := sp.Where("id = ? AND NOT EXISTS (SELECT 1 FROM comments AS child WHERE child.parent_id = comments.id)", commentID).
			Delete(&models.Comment{})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
				return models.WrapError(models.KindConflict, "comment.hard_delete", res.Error)
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewError(models.KindConflict, "comment.hard_delete", "comment %d still has replies", commentID)
		}
		return nil
	})
}

// ListChildren 列出某个父节点下的直接子评论，按创建时间倒序，id 倒序兜底
// parentID 为 nil 时列出顶层评论；软删除的占位评论也会返回，内容置空
func (s *CommentStore) ListChildren(ctx context.Context, recipeID uint, parentID *uint) ([]models.CommentView, error) {
	const op = "comment.list"
	q := s.db.WithContext(ctx).Where("recipe_id = ?", recipeID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}

	var comments []models.Comment
	if err := q.Order("created_at DESC").Order("id DESC").Find(&comments).Error; err != nil {
		return nil, translateErr(op, err)
	}

	views := make([]models.CommentView, len(comments))
	for i := range comments {
		views[i] = models.NewCommentView(&comments[i])
	}
	if err := s.fillCounts(ctx, views); err != nil {
		return nil, translateErr(op, err)
	}
	return views, nil
}

// Get 读取单条评论
func (s *CommentStore) Get(ctx context.Context, commentID uint) (*models.CommentView, error) {
	const op = "comment.get"
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, commentID).Error; err != nil {
		return nil, translateErr(op, err)
	}
	views := []models.CommentView{models.NewCommentView(&c)}
	if err := s.fillCounts(ctx, views); err != nil {
		return nil, translateErr(op, err)
	}
	return &views[0], nil
}

// fillCounts 批量填充子评论数与投票总和
func (s *CommentStore) fillCounts(ctx context.Context, views []models.CommentView) error {
	if len(views) == 0 {
		return nil
	}

	ids := make([]uint, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}

	type countResult struct {
		ParentID uint
		Count    int
	}
	var counts []countResult
	q := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("parent_id, COUNT(*) AS count").
		Where("parent_id IN ?", ids)
	if !s.countDeleted {
		q = q.Where("deleted = ?", false)
	}
	if err := q.Group("parent_id").Scan(&counts).Error; err != nil {
		return err
	}

	type sumResult struct {
		CommentID uint
		Total     int
	}
	var sums []sumResult
	if err := s.db.WithContext(ctx).Model(&models.Reaction{}).
		Select("comment_id, SUM(value) AS total").
		Where("comment_id IN ?", ids).
		Group("comment_id").
		Scan(&sums).Error; err != nil {
		return err
	}

	countMap := make(map[uint]int, len(counts))
	for _, r := range counts {
		countMap[r.ParentID] = r.Count
	}
	sumMap := make(map[uint]int, len(sums))
	for _, r := range sums {
		sumMap[r.CommentID] = r.Total
	}
	for i := range views {
		views[i].ChildCount = countMap[views[i].ID]
		views[i].ReactionSum = sumMap[views[i].ID]
	}
	return nil
}

// translateErr 将 gorm 与上下文错误转换为统一的错误类别
func translateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *models.Error
	switch {
	case errors.As(err, &typed):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &models.Error{Kind: models.KindNotFound, Op: op, Msg: "comment not found"}
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return models.WrapError(models.KindConflict, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.WrapError(models.KindTransport, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func replyKind(parentID *uint) string {
	if parentID == nil {
		return "top_level"
	}
	return "reply"
}
