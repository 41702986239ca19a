package discussion

import (
	"context"
	"sort"

	"recipethread/internal/models"

	"go.uber.org/zap"
)

// ThreadLoader 读取某个父节点下的一层子评论
// 顶层与回复两种模式返回相同的结构
type ThreadLoader struct {
	backend  CommentBackend
	recipeID uint
	log      *zap.Logger
}

func NewThreadLoader(backend CommentBackend, recipeID uint, log *zap.Logger) *ThreadLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &ThreadLoader{backend: backend, recipeID: recipeID, log: log}
}

// TopLevel 顶层评论
func (l *ThreadLoader) TopLevel(ctx context.Context) ([]models.CommentView, error) {
	return l.Load(ctx, nil)
}

// Replies 某条评论的直接回复
func (l *ThreadLoader) Replies(ctx context.Context, parentID uint) ([]models.CommentView, error) {
	return l.Load(ctx, &parentID)
}

// Load parentID 为 nil 时读取顶层
// 丢弃不属于该父节点的行，并保证按 created_at 倒序、id 倒序排列
func (l *ThreadLoader) Load(ctx context.Context, parentID *uint) ([]models.CommentView, error) {
	rows, err := l.backend.ListChildren(ctx, l.recipeID, parentID)
	if err != nil {
		return nil, err
	}

	out := make([]models.CommentView, 0, len(rows))
	for _, r := range rows {
		if r.RecipeID != l.recipeID || !r.SameParent(parentID) {
			l.log.Warn("dropping comment outside requested scope",
				zap.Uint("id", r.ID),
				zap.Uint("recipe_id", r.RecipeID),
			)
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
