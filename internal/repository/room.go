package repository

import (
	"context"

	"collaborative-canvas/internal/domain"
)

// RoomRepository 定义房间数据的存储和检索操作。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间，不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindByInviteCode 根据邀请码查找房间，不存在时返回 ErrRoomNotFound。
	FindByInviteCode(ctx context.Context, code string) (*domain.Room, error)

	// Save 保存房间信息（创建或更新）。
	Save(ctx context.Context, room *domain.Room) error

	// IsInviteCodeExists 检查邀请码是否已被占用。
	IsInviteCodeExists(ctx context.Context, code string) (bool, error)
}
