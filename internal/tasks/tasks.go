package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量
const (
	// TypeRoomCleanup 房间清空后的延迟清理任务
	TypeRoomCleanup = "room:cleanup"
	// TypeRoomSweep 周期性兜底扫描, 补偿崩溃时丢失的清理任务
	TypeRoomSweep = "room:sweep"
)

// RoomCleanupPayload 定义房间清理任务的数据结构
type RoomCleanupPayload struct {
	RoomID uint `json:"room_id"`
}

// NewRoomCleanupTask 创建一个房间清理任务。
// 调用方通过 asynq.ProcessIn 附加宽限期, 处理器执行时会再次确认房间仍为空。
func NewRoomCleanupTask(roomID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomCleanupPayload{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRoomCleanup, payload), nil
}

// NewRoomSweepTask 创建一个兜底扫描任务, 无载荷。
func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil)
}
