package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/repository"
)

// FrameHandler 处理来自某个会话的一帧消息。
// Hub 只负责会话与房间的生命周期, 帧语义由上层实现。
type FrameHandler interface {
	HandleFrame(ctx context.Context, sess *Session, frame []byte)
}

// Hub 维护房间到会话的注册表, 并驱动心跳探测。
type Hub struct {
	mu       sync.RWMutex
	rooms    map[uint]map[*Session]bool
	sessions map[*Session]bool

	presence    repository.PresenceRepository
	onRoomEmpty func(roomID uint)
	log         *logrus.Logger
}

func NewHub(presence repository.PresenceRepository, log *logrus.Logger) *Hub {
	if presence == nil {
		panic("hub: presence repository is nil")
	}
	if log == nil {
		panic("hub: logger is nil")
	}
	return &Hub{
		rooms:    make(map[uint]map[*Session]bool),
		sessions: make(map[*Session]bool),
		presence: presence,
		log:      log,
	}
}

// SetRoomEmptyHook 注册房间变空时的回调, 必须在启动前调用。
func (h *Hub) SetRoomEmptyHook(fn func(roomID uint)) {
	h.onRoomEmpty = fn
}

// Register 将会话纳入管理, 此时尚未加入任何房间。
func (h *Hub) Register(sess *Session) {
	h.mu.Lock()
	h.sessions[sess] = true
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"session_id": sess.ID(),
		"user_id":    sess.UserID(),
	}).Info("Session registered")
}

// Unregister 将会话彻底移除, 重复调用是安全的。
func (h *Hub) Unregister(ctx context.Context, sess *Session) {
	h.mu.Lock()
	if !h.sessions[sess] {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sess)
	roomID, empty := h.leaveLocked(sess)
	h.mu.Unlock()

	h.finishLeave(ctx, sess, roomID, empty)
	h.log.WithField("session_id", sess.ID()).Info("Session unregistered")
}

// Join 让会话加入房间。一个会话同一时刻只属于一个房间,
// 已在其他房间时先离开旧房间。重复加入同一房间是幂等的。
func (h *Hub) Join(ctx context.Context, sess *Session, roomID uint) {
	h.mu.Lock()
	if !h.sessions[sess] {
		h.mu.Unlock()
		return
	}
	if sess.RoomID() == roomID {
		h.mu.Unlock()
		return
	}
	oldRoom, empty := h.leaveLocked(sess)

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Session]bool)
		h.rooms[roomID] = members
	}
	members[sess] = true
	sess.setRoomID(roomID)
	h.mu.Unlock()

	h.finishLeave(ctx, sess, oldRoom, empty)
	if _, err := h.presence.Incr(ctx, roomID); err != nil {
		h.log.WithError(err).WithField("room_id", roomID).Warn("Failed to increase presence counter")
	}
	h.log.WithFields(logrus.Fields{
		"session_id": sess.ID(),
		"user_id":    sess.UserID(),
		"room_id":    roomID,
	}).Info("Session joined room")
}

// Leave 让会话离开当前房间, 不在任何房间时是空操作。
func (h *Hub) Leave(ctx context.Context, sess *Session) {
	h.mu.Lock()
	roomID, empty := h.leaveLocked(sess)
	h.mu.Unlock()

	h.finishLeave(ctx, sess, roomID, empty)
}

// leaveLocked 在持锁状态下把会话移出所在房间, 只改注册表不做 IO。
// 返回离开的房间 ID (0 表示本来就不在房间里) 和房间是否因此变空。
func (h *Hub) leaveLocked(sess *Session) (uint, bool) {
	roomID := sess.RoomID()
	if roomID == 0 {
		return 0, false
	}
	sess.setRoomID(0)

	members, ok := h.rooms[roomID]
	if !ok {
		return 0, false
	}
	if !members[sess] {
		return 0, false
	}
	delete(members, sess)

	if len(members) == 0 {
		delete(h.rooms, roomID)
		return roomID, true
	}
	return roomID, false
}

// finishLeave 执行离开房间的 IO 部分: 递减在线计数并触发空房间回调。
// Redis 往返放在锁外, 慢存储不阻塞其他房间的加入和广播。
func (h *Hub) finishLeave(ctx context.Context, sess *Session, roomID uint, empty bool) {
	if roomID == 0 {
		return
	}
	if _, err := h.presence.Decr(ctx, roomID); err != nil {
		h.log.WithError(err).WithField("room_id", roomID).Warn("Failed to decrease presence counter")
	}
	h.log.WithFields(logrus.Fields{
		"session_id": sess.ID(),
		"room_id":    roomID,
	}).Info("Session left room")

	if empty {
		h.roomBecameEmpty(roomID)
	}
}

func (h *Hub) roomBecameEmpty(roomID uint) {
	h.log.WithField("room_id", roomID).Info("Room is now empty")
	if h.onRoomEmpty != nil {
		h.onRoomEmpty(roomID)
	}
}

// Broadcast 向房间内所有会话发送一帧, exclude 不为空时跳过该会话。
// 投递失败只记录日志, 死连接交给心跳回收。
func (h *Hub) Broadcast(roomID uint, frame []byte, exclude *Session) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.rooms[roomID]))
	for sess := range h.rooms[roomID] {
		if sess == exclude {
			continue
		}
		targets = append(targets, sess)
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.Send(frame); err != nil {
			h.log.WithError(err).WithField("session_id", sess.ID()).Warn("Failed to deliver frame")
		}
	}
}

// RoomSize 返回房间当前的会话数。
func (h *Hub) RoomSize(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// SessionCount 返回在管的会话总数。
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Terminate 强制关闭并注销会话, 对同一会话只会生效一次。
func (h *Hub) Terminate(ctx context.Context, sess *Session, code int, reason string) {
	if !sess.markTerminated() {
		return
	}
	if err := sess.Close(code, reason); err != nil {
		h.log.WithError(err).WithField("session_id", sess.ID()).Debug("Close on terminate failed")
	}
	h.Unregister(ctx, sess)
}

// RunHeartbeat 按固定间隔探测所有会话, 直到 ctx 取消。
// 上一轮探测后仍未收到 pong 的会话会被终止。
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

// sweep 执行一轮心跳。先收割未响应上轮探测的会话, 再发出新一轮 ping。
func (h *Hub) sweep(ctx context.Context) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for sess := range h.sessions {
		targets = append(targets, sess)
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		if !sess.consumeAlive() {
			h.log.WithFields(logrus.Fields{
				"session_id": sess.ID(),
				"user_id":    sess.UserID(),
			}).Warn("Session missed heartbeat, terminating")
			h.Terminate(ctx, sess, 0, "heartbeat timeout")
			continue
		}
		if err := sess.Ping(); err != nil {
			h.log.WithError(err).WithField("session_id", sess.ID()).Warn("Ping failed, terminating session")
			h.Terminate(ctx, sess, 0, "ping failed")
		}
	}
}
