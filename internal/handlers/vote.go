package handlers

import (
	"net/http"

	"recipethread/internal/discussion"
	"recipethread/internal/metrics"
	"recipethread/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	ledger *services.ReactionLedger
}

func NewVoteHandler(ledger *services.ReactionLedger) *VoteHandler {
	return &VoteHandler{ledger: ledger}
}

type voteRequest struct {
	Value int `json:"value" binding:"required,oneof=1 -1"`
}

// VoteResponse 当前用户的投票值，0 表示未投票
type VoteResponse struct {
	Value int `json:"value"`
}

// Get 当前用户的投票
func (h *VoteHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	v, err := h.ledger.GetUserVote(c.Request.Context(), id, currentUser(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VoteResponse{Value: v})
}

// Cast 投票，已有投票时返回 409
func (h *VoteHandler) Cast(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req voteRequest
	if !bindJSON(c, "vote.cast", &req) {
		return
	}
	if err := h.ledger.CastVote(c.Request.Context(), id, currentUser(c), req.Value); err != nil {
		RespondError(c, err)
		return
	}
	metrics.Votes.WithLabelValues(metrics.VoteAction(req.Value)).Inc()
	c.JSON(http.StatusOK, VoteResponse{Value: req.Value})
}

// Clear 取消投票，未投票时同样成功
func (h *VoteHandler) Clear(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.ledger.ClearVote(c.Request.Context(), id, currentUser(c)); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Toggle 在一个事务内切换投票
func (h *VoteHandler) Toggle(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req voteRequest
	if !bindJSON(c, "vote.toggle", &req) {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)

	var result int
	err := h.ledger.Transaction(ctx, func(l *services.ReactionLedger) error {
		var err error
		result, err = discussion.ToggleVote(ctx, l, id, user, req.Value)
		return err
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	metrics.Votes.WithLabelValues(metrics.VoteAction(result)).Inc()
	c.JSON(http.StatusOK, VoteResponse{Value: result})
}
