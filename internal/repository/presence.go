package repository

import "context"

// PresenceRepository 维护房间的实时在线人数，由 Redis 实现。
// Hub 在 join/leave 时增减计数；清理任务据此确认房间是否仍然为空。
type PresenceRepository interface {
	// Incr 房间人数 +1，返回新的计数。
	Incr(ctx context.Context, roomID uint) (int64, error)

	// Decr 房间人数 -1，返回新的计数（不会低于 0）。
	Decr(ctx context.Context, roomID uint) (int64, error)

	// Count 返回房间当前人数，无记录视为 0。
	Count(ctx context.Context, roomID uint) (int64, error)

	// Clear 删除房间的计数 key。
	Clear(ctx context.Context, roomID uint) error
}
