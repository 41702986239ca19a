package handlers

import (
	"net/http"
	"strings"
	"time"

	"recipethread/internal/logger"
	"recipethread/internal/models"
	"recipethread/internal/services"
	"recipethread/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyHeader 客户端重试创建时携带的幂等键
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

type CommentHandler struct {
	backend *services.Backend
	idem    utils.IdempotencyStore
	idemTTL time.Duration
}

func NewCommentHandler(backend *services.Backend, idem utils.IdempotencyStore, idemTTL time.Duration) *CommentHandler {
	return &CommentHandler{backend: backend, idem: idem, idemTTL: idemTTL}
}

type createCommentRequest struct {
	Content  string `json:"content" binding:"required,notblank"`
	ParentID *uint  `json:"parent_id" binding:"omitempty,gt=0"`
}

type editCommentRequest struct {
	Content string `json:"content" binding:"required,notblank"`
}

// ListResponse 子评论列表
type ListResponse struct {
	Comments []models.CommentView `json:"comments"`
}

// DeleteResponse 删除结果
type DeleteResponse struct {
	HardDeleted bool `json:"hard_deleted"`
}

// ListTopLevel 顶层评论
func (h *CommentHandler) ListTopLevel(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		return
	}
	h.list(c, rid, nil)
}

// ListReplies 某条评论的直接回复
func (h *CommentHandler) ListReplies(c *gin.Context) {
	rid, ok := paramID(c, "rid")
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.list(c, rid, &id)
}

func (h *CommentHandler) list(c *gin.Context, rid uint, parentID *uint) {
	views, err := h.backend.ListChildren(c.Request.Context(), rid, parentID)
	if err != nil {
		RespondError(c, err)
		return
	}
	if views == nil {
		views = []models.CommentView{}
	}
	c.JSON(http.StatusOK, ListResponse{Comments: views})
}

// Create 发表评论；相同幂等键的重复请求返回第一次创建的评论
func (h *CommentHandler) Create(c *gin.Context) {
	const op = "comment.create"
	rid, ok := paramID(c, "rid")
	if !ok {
		return
	}
	var req createCommentRequest
	if !bindJSON(c, op, &req) {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)

	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if len(key) > maxIdempotencyKeyLen {
		RespondError(c, models.NewError(models.KindValidation, op, "idempotency key too long"))
		return
	}
	if key != "" && h.idem != nil {
		key = user.String() + ":" + key
		id, found, err := h.idem.Lookup(ctx, key)
		if err != nil {
			logger.L().Warn("幂等键查询失败", zap.Error(err))
		}
		if found {
			view, err := h.backend.Get(ctx, id)
			if err == nil {
				c.JSON(http.StatusOK, view)
				return
			}
			// 原评论已被删除，按新请求处理
			logger.L().Debug("幂等键对应的评论不存在", zap.Uint("id", id), zap.Error(err))
		}
	}

	view, err := h.backend.Create(ctx, rid, req.ParentID, user, req.Content)
	if err != nil {
		RespondError(c, err)
		return
	}
	if key != "" && h.idem != nil {
		if err := h.idem.Remember(ctx, key, view.ID, h.idemTTL); err != nil {
			logger.L().Warn("幂等键保存失败", zap.Error(err))
		}
	}
	c.JSON(http.StatusCreated, view)
}

// Get 单条评论
func (h *CommentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.backend.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Edit 修改评论，返回修改后的评论
func (h *CommentHandler) Edit(c *gin.Context) {
	const op = "comment.edit"
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req editCommentRequest
	if !bindJSON(c, op, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := h.backend.Edit(ctx, id, currentUser(c), req.Content); err != nil {
		RespondError(c, err)
		return
	}
	view, err := h.backend.Get(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete 删除评论，仅限作者
func (h *CommentHandler) Delete(c *gin.Context) {
	const op = "comment.delete"
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	view, err := h.backend.Get(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	if view.OwnerID != currentUser(c) {
		RespondError(c, models.NewError(models.KindForbidden, op, "only the author can delete this comment"))
		return
	}
	if view.Deleted {
		RespondError(c, models.NewError(models.KindValidation, op, "comment has already been deleted"))
		return
	}

	hard, err := h.backend.Delete(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{HardDeleted: hard})
}
