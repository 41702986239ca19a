package utils

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 评论正文是纯文本，所有标签都被剥离
var plainPolicy = bluemonday.StrictPolicy()

// maxStripPasses 实体多层转义时最多清洗的轮数
const maxStripPasses = 8

// StripMarkup 去除 HTML 标签并还原实体，返回去除首尾空白的纯文本
// 还原实体后可能重新出现标签，因此反复清洗直到结果不再变化
func StripMarkup(s string) string {
	for i := 0; i < maxStripPasses; i++ {
		next := html.UnescapeString(plainPolicy.Sanitize(s))
		if next == s {
			return strings.TrimSpace(next)
		}
		s = next
	}
	// 仍未收敛时保留转义后的文本
	return strings.TrimSpace(plainPolicy.Sanitize(s))
}

// RuneLen 字符数（非字节数）
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate 按字符截断，用于日志中的内容摘要
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
