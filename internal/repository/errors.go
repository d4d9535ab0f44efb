package repository

import "errors"

// 通用的存储库错误，具体实现负责把底层驱动错误映射到这里。
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示写入的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

var (
	ErrUserNotFound  = ErrNotFound
	ErrRoomNotFound  = ErrNotFound
	ErrShapeNotFound = ErrNotFound
)
