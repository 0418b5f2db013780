package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示插入的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrStaleInstance 表示基于回合令牌的条件改写没有命中任何行,
	// 即读取后会话已被并发修改 (乐观锁失败)
	ErrStaleInstance = errors.New("repository: turn instance is stale")
)

// 特定资源的错误 (基于通用错误创建, 方便调用方 errors.Is 判断)
var (
	ErrRoomNotFound    = ErrNotFound
	ErrMemberNotFound  = ErrNotFound
	ErrSessionNotFound = ErrNotFound
	ErrPromptNotFound  = ErrNotFound
)
