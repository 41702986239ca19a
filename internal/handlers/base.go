package handlers

import (
	"errors"
	"net/http"

	"recipethread/internal/logger"
	"recipethread/internal/middleware"
	"recipethread/internal/models"
	"recipethread/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorResponse 统一的错误响应
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusOf 错误类别到 HTTP 状态码
func statusOf(kind models.Kind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindTransport:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RespondError 按错误类别输出 JSON，未知错误只记录日志
func RespondError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status := statusOf(kind)
	if status == http.StatusInternalServerError {
		logger.L().Error("请求处理失败",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(status, ErrorResponse{Error: "internal server error", Kind: kind.String()})
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: models.Message(err), Kind: kind.String()})
}

// bindJSON 绑定请求体，失败时输出 400
func bindJSON(c *gin.Context, op string, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			RespondError(c, models.NewError(models.KindValidation, op, "%s", FormatValidationError(verrs)))
		} else {
			RespondError(c, models.NewError(models.KindValidation, op, "malformed request body"))
		}
		return false
	}
	return true
}

// paramID 读取路径中的 ID
func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		RespondError(c, models.NewError(models.KindValidation, "", "invalid %s", name))
		return 0, false
	}
	return id, true
}

// currentUser AuthRequired 之后调用
func currentUser(c *gin.Context) uuid.UUID {
	id, _ := middleware.CurrentUser(c)
	return id
}
