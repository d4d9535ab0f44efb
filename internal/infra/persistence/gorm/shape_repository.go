package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

// GormShapeRepository 是 ShapeRepository 接口的 GORM 实现。
// 主键即图形的权威 id，创建后由调用方回写进线上 payload。
type GormShapeRepository struct {
	db *gorm.DB
}

// NewGormShapeRepository 创建 GormShapeRepository 实例
func NewGormShapeRepository(db *gorm.DB) *GormShapeRepository {
	if db == nil {
		panic("database connection cannot be nil for GormShapeRepository")
	}
	return &GormShapeRepository{db: db}
}

func (r *GormShapeRepository) Create(ctx context.Context, roomID, ownerID uint, payload string) (uint, error) {
	rec := domain.ShapeRecord{
		RoomID:  roomID,
		OwnerID: ownerID,
		Payload: payload,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("gorm: create shape in room %d: %w", roomID, err)
	}
	return rec.ID, nil
}

func (r *GormShapeRepository) Update(ctx context.Context, id uint, payload string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.ShapeRecord{}).
		Where("id = ?", id).
		Update("payload", payload)
	if result.Error != nil {
		return fmt.Errorf("gorm: update shape %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrShapeNotFound
	}
	return nil
}

func (r *GormShapeRepository) Delete(ctx context.Context, id uint) error {
	// 删除不存在的记录不算错误：删除事件可能在两个客户端之间竞争
	if err := r.db.WithContext(ctx).Delete(&domain.ShapeRecord{}, id).Error; err != nil {
		return fmt.Errorf("gorm: delete shape %d: %w", id, err)
	}
	return nil
}

func (r *GormShapeRepository) ListByRoom(ctx context.Context, roomID uint) ([]domain.ShapeRecord, error) {
	var records []domain.ShapeRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list shapes for room %d: %w", roomID, err)
	}
	return records, nil
}

func (r *GormShapeRepository) DeleteByRoom(ctx context.Context, roomID uint) error {
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&domain.ShapeRecord{}).Error; err != nil {
		return fmt.Errorf("gorm: delete shapes for room %d: %w", roomID, err)
	}
	return nil
}

func (r *GormShapeRepository) RoomsWithShapes(ctx context.Context) ([]uint, error) {
	var roomIDs []uint
	err := r.db.WithContext(ctx).
		Model(&domain.ShapeRecord{}).
		Distinct("room_id").
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms with shapes: %w", err)
	}
	return roomIDs, nil
}

var _ repository.ShapeRepository = (*GormShapeRepository)(nil)
