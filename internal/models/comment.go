package models

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RecipeID uint      `gorm:"not null;index:idx_comment_scope,priority:1" json:"recipe_id"`
	ParentID *uint     `gorm:"index;index:idx_comment_scope,priority:2" json:"parent_id"` // nil 表示顶层评论
	Parent   *Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	OwnerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Content  string    `gorm:"type:text;not null" json:"content"`
	// Deleted 软删除标记，置位后内容不再返回也不再修改
	Deleted   bool      `gorm:"not null;default:false;index" json:"deleted"`
	CreatedAt time.Time `gorm:"index:idx_comment_scope,priority:3" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTopLevel 是否为顶层评论
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil
}

// CommentView 列表与创建接口返回的评论结构
// ChildCount 与 ReactionSum 在读取时计算
type CommentView struct {
	ID          uint      `json:"id"`
	RecipeID    uint      `json:"recipe_id"`
	ParentID    *uint     `json:"parent_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Content     string    `json:"content"`
	Deleted     bool      `json:"deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ChildCount  int       `json:"child_count"`
	ReactionSum int       `json:"reaction_sum"`
}

// NewCommentView 由评论生成视图，已删除评论的内容置空
func NewCommentView(c *Comment) CommentView {
	v := CommentView{
		ID:        c.ID,
		RecipeID:  c.RecipeID,
		ParentID:  c.ParentID,
		OwnerID:   c.OwnerID,
		Content:   c.Content,
		Deleted:   c.Deleted,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Deleted {
		v.Content = ""
	}
	return v
}

// SameParent 判断视图的父节点是否与给定的父节点一致
func (v *CommentView) SameParent(parentID *uint) bool {
	if v.ParentID == nil || parentID == nil {
		return v.ParentID == nil && parentID == nil
	}
	return *v.ParentID == *parentID
}
