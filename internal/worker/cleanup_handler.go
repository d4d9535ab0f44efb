package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/tasks"
)

// RoomCleanupHandler 处理房间清空后的图形清理。
// 任务在宽限期后才会执行, 执行前必须重新确认房间仍然无人,
// 宽限期内有人重连则清理作废。
type RoomCleanupHandler struct {
	shapeRepo    repository.ShapeRepository
	presenceRepo repository.PresenceRepository
}

func NewRoomCleanupHandler(shapeRepo repository.ShapeRepository, presenceRepo repository.PresenceRepository) *RoomCleanupHandler {
	if shapeRepo == nil || presenceRepo == nil {
		panic("All repositories must be non-nil for RoomCleanupHandler")
	}
	return &RoomCleanupHandler{shapeRepo: shapeRepo, presenceRepo: presenceRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.RoomCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal room cleanup payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"room_id":   payload.RoomID,
	})

	count, err := h.presenceRepo.Count(ctx, payload.RoomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read presence counter, will retry")
		return fmt.Errorf("failed to read presence for room %d: %w", payload.RoomID, err)
	}
	if count > 0 {
		logCtx.WithField("presence", count).Info("Room repopulated during grace period, skipping cleanup")
		return nil
	}

	if err := h.shapeRepo.DeleteByRoom(ctx, payload.RoomID); err != nil {
		logCtx.WithError(err).Error("Failed to delete shapes for empty room")
		return fmt.Errorf("failed to delete shapes for room %d: %w", payload.RoomID, err)
	}
	if err := h.presenceRepo.Clear(ctx, payload.RoomID); err != nil {
		logCtx.WithError(err).Warn("Failed to clear presence counter for cleaned room")
	}

	logCtx.Info("Cleaned up shapes for empty room")
	return nil
}

// RoomSweepHandler 周期性扫描仍持有图形的房间, 为其中无人的房间
// 补发清理。覆盖房间清空事件与清理任务入队之间进程崩溃的场景。
type RoomSweepHandler struct {
	shapeRepo    repository.ShapeRepository
	presenceRepo repository.PresenceRepository
}

func NewRoomSweepHandler(shapeRepo repository.ShapeRepository, presenceRepo repository.PresenceRepository) *RoomSweepHandler {
	if shapeRepo == nil || presenceRepo == nil {
		panic("All repositories must be non-nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{shapeRepo: shapeRepo, presenceRepo: presenceRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	roomIDs, err := h.shapeRepo.RoomsWithShapes(ctx)
	if err != nil {
		logrus.WithError(err).Error("Room sweep: failed to list rooms with shapes")
		return fmt.Errorf("failed to list rooms with shapes: %w", err)
	}

	swept := 0
	for _, roomID := range roomIDs {
		count, err := h.presenceRepo.Count(ctx, roomID)
		if err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Room sweep: failed to read presence, skipping room")
			continue
		}
		if count > 0 {
			continue
		}
		if err := h.shapeRepo.DeleteByRoom(ctx, roomID); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Room sweep: failed to delete shapes")
			continue
		}
		if err := h.presenceRepo.Clear(ctx, roomID); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Room sweep: failed to clear presence counter")
		}
		swept++
	}

	logrus.WithFields(logrus.Fields{
		"candidates": len(roomIDs),
		"swept":      swept,
	}).Info("Room sweep completed")
	return nil
}
