package idgen

import "github.com/google/uuid"

// New 生成全局唯一、时间有序的标识（UUID v7）
// v7 生成仅在系统熵耗尽时失败，此时退回 v4 保证唯一性
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
