package utils

import (
	"strconv"
)

// ParseID 解析路径中的正整数 ID
func ParseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// FormatID uint 转字符串
func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
