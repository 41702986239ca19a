package discussion

import (
	"context"

	"recipethread/internal/models"

	"github.com/google/uuid"
)

// ToggleVote 切换投票：读取当前值，无条件清除，仅当请求值与原值不同才重新投票
// 同方向连续两次等于取消投票。返回操作后的投票值
func ToggleVote(ctx context.Context, ledger VoteLedger, commentID uint, userID uuid.UUID, value int) (int, error) {
	const op = "vote.toggle"
	if !models.ValidVote(value) {
		return models.VoteNone, models.NewError(models.KindValidation, op, "vote value must be 1 or -1")
	}

	current, err := ledger.GetUserVote(ctx, commentID, userID)
	if err != nil {
		return models.VoteNone, err
	}
	if err := ledger.ClearVote(ctx, commentID, userID); err != nil {
		return current, err
	}
	if current == value {
		return models.VoteNone, nil
	}
	if err := ledger.CastVote(ctx, commentID, userID, value); err != nil {
		return models.VoteNone, err
	}
	return value, nil
}
