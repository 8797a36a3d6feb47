package domain

import "errors"

var (
	// ErrNotFound 按 id / identity_no 未找到未删除的人员记录
	ErrNotFound = errors.New("person not found")

	// ErrConflict identity_no 唯一索引冲突（并发创建时由数据库仲裁）
	// 必须向上传递，调用方可自行重试
	ErrConflict = errors.New("identity_no already exists")
)
