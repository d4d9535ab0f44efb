package repository

import (
	"context"

	"collaborative-canvas/internal/domain"
)

// ShapeRepository 是同步核心消费的 Shape Store 接口：
// 按 id 建/改/删，按房间列取。协议处理器在广播前必须先完成这里的
// 持久化调用，保证对端看到的图形一定已经落库。
type ShapeRepository interface {
	// Create 持久化一条新图形记录并返回服务端分配的权威 id。
	Create(ctx context.Context, roomID, ownerID uint, payload string) (uint, error)

	// Update 覆盖写指定记录的 payload（last-writer-wins）。
	// 记录不存在时返回 ErrShapeNotFound。
	Update(ctx context.Context, id uint, payload string) error

	// Delete 删除指定记录；删除不存在的记录不算错误。
	Delete(ctx context.Context, id uint) error

	// ListByRoom 按创建顺序返回房间的全部图形记录。
	ListByRoom(ctx context.Context, roomID uint) ([]domain.ShapeRecord, error)

	// DeleteByRoom 级联删除房间的全部图形（房间清空的清理路径）。
	DeleteByRoom(ctx context.Context, roomID uint) error

	// RoomsWithShapes 返回仍持有图形记录的房间 id 列表（清理扫描用）。
	RoomsWithShapes(ctx context.Context) ([]uint, error)
}
