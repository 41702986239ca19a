package handlers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验器注册自定义规则
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("notblank", notBlank)
		}
	})
}

// notBlank 去掉空白后不能为空
func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// FormatValidationError 取第一个校验错误生成提示
func FormatValidationError(errs validator.ValidationErrors) string {
	msgMap := map[string]string{
		"required": "is required",
		"notblank": "must not be empty",
		"oneof":    "must be one of [%v]",
		"gt":       "must be greater than %v",
		"max":      "must be at most %v characters",
	}

	first := errs[0]
	field := strings.ToLower(first.Field())
	tmpl, ok := msgMap[first.Tag()]
	if !ok {
		tmpl = "is invalid"
	}
	if first.Param() != "" && strings.Contains(tmpl, "%v") {
		return field + " " + fmt.Sprintf(tmpl, first.Param())
	}
	return field + " " + tmpl
}
