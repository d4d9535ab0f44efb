package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/hub"
	"collaborative-canvas/internal/protocol"
	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/shape"
)

// SyncService 实现画布同步协议的服务端语义: 解析信封、校验成员资格、
// 先持久化再广播。它作为 hub.FrameHandler 被读循环同步调用,
// 因此同一会话的帧天然按到达顺序处理。
type SyncService struct {
	hub       *hub.Hub
	roomRepo  repository.RoomRepository
	shapeRepo repository.ShapeRepository
}

func NewSyncService(h *hub.Hub, roomRepo repository.RoomRepository, shapeRepo repository.ShapeRepository) *SyncService {
	if h == nil {
		panic("Hub cannot be nil for SyncService")
	}
	if roomRepo == nil || shapeRepo == nil {
		panic("All repositories must be non-nil for SyncService")
	}
	return &SyncService{
		hub:       h,
		roomRepo:  roomRepo,
		shapeRepo: shapeRepo,
	}
}

var _ hub.FrameHandler = (*SyncService)(nil)

// HandleFrame 分发一帧入站消息。协议级错误通过 ERROR 帧回给发送者,
// 连接保持打开。
func (s *SyncService) HandleFrame(ctx context.Context, sess *hub.Session, frame []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		s.sendError(sess, protocol.ErrCodeBadFrame, "malformed envelope")
		return
	}

	switch env.Type {
	case protocol.TypeJoinRoom:
		s.joinRoom(ctx, sess, env.Payload)
	case protocol.TypeLeaveRoom:
		s.leaveRoom(ctx, sess)
	case protocol.TypeCreateShape, protocol.TypeCreateShapeAlias:
		s.createShape(ctx, sess, env.Payload)
	case protocol.TypeUpdateShape:
		s.updateShape(ctx, sess, env.Payload)
	case protocol.TypeDeleteShape:
		s.deleteShape(ctx, sess, env.Payload)
	default:
		s.sendError(sess, protocol.ErrCodeUnknownType, "unknown message type: "+env.Type)
	}
}

func (s *SyncService) joinRoom(ctx context.Context, sess *hub.Session, raw json.RawMessage) {
	var p protocol.JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == 0 {
		s.sendError(sess, protocol.ErrCodeBadFrame, "join requires a roomId")
		return
	}

	if _, err := s.roomRepo.FindByID(ctx, p.RoomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			s.sendError(sess, protocol.ErrCodeRoomNotFound, "room does not exist")
			return
		}
		logrus.WithError(err).WithField("room_id", p.RoomID).Error("Join failed: repository error")
		s.sendError(sess, protocol.ErrCodePersistence, "failed to verify room")
		return
	}

	s.hub.Join(ctx, sess, p.RoomID)
}

func (s *SyncService) leaveRoom(ctx context.Context, sess *hub.Session) {
	s.hub.Leave(ctx, sess)
}

// createShape 处理图形创建: 解码并校验图形, 落库取得权威 id,
// 把 id 写回图形后广播给房间内其他成员, 并单独向创建者回
// ACK_SHAPE 完成临时 id 对账。
func (s *SyncService) createShape(ctx context.Context, sess *hub.Session, raw json.RawMessage) {
	roomID, ok := s.requireRoom(sess)
	if !ok {
		return
	}

	var p protocol.CreateShapePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Message == "" {
		s.sendError(sess, protocol.ErrCodeBadFrame, "create requires a message")
		return
	}

	sh, err := shape.Decode(p.Message)
	if err != nil {
		s.sendError(sess, protocol.ErrCodeBadShape, err.Error())
		return
	}
	tempID := sh.ID

	// 权威 id 由数据库分配, 入库前清空客户端的临时 id
	sh.ID = ""
	payload, err := shape.Encode(sh)
	if err != nil {
		s.sendError(sess, protocol.ErrCodeBadShape, err.Error())
		return
	}

	id, err := s.shapeRepo.Create(ctx, roomID, sess.UserID(), payload)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"user_id": sess.UserID(),
		}).Error("Failed to persist new shape")
		s.sendError(sess, protocol.ErrCodePersistence, "failed to persist shape")
		return
	}

	sh.ID = strconv.FormatUint(uint64(id), 10)
	message, err := shape.Encode(sh)
	if err != nil {
		s.sendError(sess, protocol.ErrCodePersistence, "failed to encode shape")
		return
	}

	frame, err := protocol.Marshal(protocol.TypeCreateShape, protocol.CreateShapePayload{
		Message: message,
		RoomID:  roomID,
		TempID:  tempID,
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal create broadcast")
		return
	}
	// 创建者不重复收到自己的图形, 只收 ACK
	s.hub.Broadcast(roomID, frame, sess)

	ack, err := protocol.Marshal(protocol.TypeAckShape, protocol.AckShapePayload{
		TempID:  tempID,
		ShapeID: sh.ID,
		Message: message,
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal shape ack")
		return
	}
	if err := sess.Send(ack); err != nil {
		logrus.WithError(err).WithField("session_id", sess.ID()).Warn("Failed to deliver shape ack")
	}
}

// updateShape 覆盖写已有图形并广播给房间内所有成员, 包括发送者。
// 回显让各端在并发更新下收敛到同一份最终写入。
func (s *SyncService) updateShape(ctx context.Context, sess *hub.Session, raw json.RawMessage) {
	roomID, ok := s.requireRoom(sess)
	if !ok {
		return
	}

	var p protocol.UpdateShapePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Message == "" || p.ShapeID == "" {
		s.sendError(sess, protocol.ErrCodeBadFrame, "update requires a shapeId and message")
		return
	}
	id, err := strconv.ParseUint(p.ShapeID, 10, 64)
	if err != nil {
		s.sendError(sess, protocol.ErrCodeBadShape, "shapeId is not a server id")
		return
	}

	sh, err := shape.Decode(p.Message)
	if err != nil {
		s.sendError(sess, protocol.ErrCodeBadShape, err.Error())
		return
	}
	sh.ID = p.ShapeID
	payload, err := shape.Encode(sh)
	if err != nil {
		s.sendError(sess, protocol.ErrCodeBadShape, err.Error())
		return
	}

	if err := s.shapeRepo.Update(ctx, uint(id), payload); err != nil {
		if errors.Is(err, repository.ErrShapeNotFound) {
			s.sendError(sess, protocol.ErrCodeBadShape, "shape does not exist")
			return
		}
		logrus.WithError(err).WithField("shape_id", id).Error("Failed to persist shape update")
		s.sendError(sess, protocol.ErrCodePersistence, "failed to persist update")
		return
	}

	frame, err := protocol.Marshal(protocol.TypeUpdateShape, protocol.UpdateShapePayload{
		Message: payload,
		ShapeID: p.ShapeID,
		RoomID:  roomID,
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal update broadcast")
		return
	}
	s.hub.Broadcast(roomID, frame, nil)
}

func (s *SyncService) deleteShape(ctx context.Context, sess *hub.Session, raw json.RawMessage) {
	roomID, ok := s.requireRoom(sess)
	if !ok {
		return
	}

	var p protocol.DeleteShapePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ShapeID == "" {
		s.sendError(sess, protocol.ErrCodeBadFrame, "delete requires a shapeId")
		return
	}
	id, err := strconv.ParseUint(p.ShapeID, 10, 64)
	if err != nil {
		s.sendError(sess, protocol.ErrCodeBadShape, "shapeId is not a server id")
		return
	}

	// 删除不存在的记录不算错误, 重复删除是幂等的
	if err := s.shapeRepo.Delete(ctx, uint(id)); err != nil {
		logrus.WithError(err).WithField("shape_id", id).Error("Failed to persist shape delete")
		s.sendError(sess, protocol.ErrCodePersistence, "failed to persist delete")
		return
	}

	frame, err := protocol.Marshal(protocol.TypeDeleteShape, protocol.DeleteShapePayload{
		ShapeID: p.ShapeID,
		RoomID:  roomID,
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal delete broadcast")
		return
	}
	s.hub.Broadcast(roomID, frame, sess)
}

// requireRoom 取出会话当前所在房间, 未加入房间时回错误帧。
func (s *SyncService) requireRoom(sess *hub.Session) (uint, bool) {
	roomID := sess.RoomID()
	if roomID == 0 {
		s.sendError(sess, protocol.ErrCodeNotInRoom, "join a room before sending shapes")
		return 0, false
	}
	return roomID, true
}

func (s *SyncService) sendError(sess *hub.Session, code, message string) {
	if err := sess.Send(protocol.MarshalError(code, message)); err != nil {
		logrus.WithError(err).WithField("session_id", sess.ID()).Debug("Failed to deliver error frame")
	}
}
