package discussion

import (
	"context"

	"recipethread/internal/models"

	"github.com/google/uuid"
)

// CommentBackend 评论的数据访问
type CommentBackend interface {
	Create(ctx context.Context, recipeID uint, parentID *uint, ownerID uuid.UUID, content string) (*models.CommentView, error)
	Edit(ctx context.Context, commentID uint, ownerID uuid.UUID, content string) error
	Delete(ctx context.Context, commentID uint) (hardDeleted bool, err error)
	ListChildren(ctx context.Context, recipeID uint, parentID *uint) ([]models.CommentView, error)
}

// VoteLedger 投票的数据访问
type VoteLedger interface {
	GetUserVote(ctx context.Context, commentID uint, userID uuid.UUID) (int, error)
	ClearVote(ctx context.Context, commentID uint, userID uuid.UUID) error
	CastVote(ctx context.Context, commentID uint, userID uuid.UUID, value int) error
}

// Backend 控制器依赖的全部数据访问能力
type Backend interface {
	CommentBackend
	VoteLedger
}

// Identity 提供当前操作用户
type Identity interface {
	CurrentUserID() uuid.UUID
}

// StaticIdentity 固定用户
type StaticIdentity uuid.UUID

func (s StaticIdentity) CurrentUserID() uuid.UUID {
	return uuid.UUID(s)
}

// Presenter 渲染层回调
// NodeChanged 在节点状态或子列表变化后调用，id 为 0 表示顶层列表
type Presenter interface {
	NodeChanged(id uint)
	ShowError(err error)
	Confirm(ctx context.Context, prompt string) bool
}

type nopPresenter struct{}

func (nopPresenter) NodeChanged(uint)                     {}
func (nopPresenter) ShowError(error)                      {}
func (nopPresenter) Confirm(context.Context, string) bool { return false }
