package services

import (
	"fmt"
	"strings"

	"recipethread/internal/config"
	"recipethread/internal/models"
	"recipethread/internal/utils"

	"github.com/importcjj/sensitive"
)

// rawLengthFactor 去标签前的输入最多为 maxLen 的几倍
const rawLengthFactor = 4

// ContentFilter 评论正文校验与清洗
type ContentFilter struct {
	maxLen int
	words  *sensitive.Filter
}

// NewContentFilter 根据配置创建过滤器，可从文件加载敏感词（每行一个）
func NewContentFilter(cfg config.DiscussionConfig) (*ContentFilter, error) {
	f := &ContentFilter{maxLen: cfg.MaxContentLength}
	if len(cfg.SensitiveWords) == 0 && cfg.SensitiveWordsFile == "" {
		return f, nil
	}

	f.words = sensitive.New()
	for _, w := range cfg.SensitiveWords {
		if w = strings.TrimSpace(w); w != "" {
			f.words.AddWord(w)
		}
	}
	if cfg.SensitiveWordsFile != "" {
		if err := f.words.LoadWordDict(cfg.SensitiveWordsFile); err != nil {
			return nil, fmt.Errorf("加载敏感词失败: %w", err)
		}
	}
	return f, nil
}

// Clean 返回可入库的正文；空内容、超长内容返回 ErrValidation
// 长度按去掉标签后的字符数计算
func (f *ContentFilter) Clean(op, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", models.NewError(models.KindValidation, op, "content must not be empty")
	}
	// 原始输入另设上限，标签只占这部分余量
	if f.maxLen > 0 && utils.RuneLen(content) > f.maxLen*rawLengthFactor {
		return "", models.NewError(models.KindValidation, op, "content exceeds %d characters", f.maxLen)
	}

	text := utils.StripMarkup(content)
	if text == "" {
		return "", models.NewError(models.KindValidation, op, "content must not be empty")
	}
	if f.maxLen > 0 && utils.RuneLen(text) > f.maxLen {
		return "", models.NewError(models.KindValidation, op, "content exceeds %d characters", f.maxLen)
	}
	if f.words != nil {
		text = f.words.Replace(text, '*')
	}
	return text, nil
}
