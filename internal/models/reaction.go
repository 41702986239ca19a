package models

import (
	"time"

	"github.com/google/uuid"
)

// 投票取值
const (
	VoteNone = 0
	VoteUp   = 1
	VoteDown = -1
)

// Reaction 用户对评论的投票，每个 (评论, 用户) 至多一条
// 改票是先删后插，不做原地更新
type Reaction struct {
	CommentID uint      `gorm:"primaryKey;autoIncrement:false" json:"comment_id"`
	Comment   *Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    uuid.UUID `gorm:"primaryKey;type:uuid" json:"user_id"`
	Value     int       `gorm:"not null;check:chk_reaction_value,value = 1 OR value = -1" json:"value"` // 1 or -1
	CreatedAt time.Time `json:"created_at"`
}

// ValidVote 投票值只能为 1 或 -1
func ValidVote(v int) bool {
	return v == VoteUp || v == VoteDown
}
