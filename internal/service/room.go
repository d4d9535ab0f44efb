package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/shape"
)

// RoomService 负责房间管理相关的业务逻辑。
type RoomService struct {
	roomRepo  repository.RoomRepository
	shapeRepo repository.ShapeRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository, shapeRepo repository.ShapeRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if shapeRepo == nil {
		panic("ShapeRepository cannot be nil for RoomService")
	}
	return &RoomService{
		roomRepo:  roomRepo,
		shapeRepo: shapeRepo,
	}
}

// CreateRoom 创建一个新房间。
func (s *RoomService) CreateRoom(ctx context.Context, creatorID uint, name string) (*domain.Room, error) {
	logCtx := logrus.WithField("creator_id", creatorID)

	inviteCode, err := s.generateUniqueInviteCode(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique invite code")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("invite_code", inviteCode)

	room := &domain.Room{
		Name:       name,
		CreatorID:  creatorID,
		InviteCode: inviteCode,
	}

	if err := s.roomRepo.Save(ctx, room); err != nil {
		// 邀请码已查重, 此处冲突视为内部错误
		logCtx.WithError(err).Error("Failed to save new room to database")
		return nil, ErrInternalServer
	}

	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	return room, nil
}

// JoinRoomByInvite 处理用户通过邀请码定位房间。
func (s *RoomService) JoinRoomByInvite(ctx context.Context, userID uint, inviteCode string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "invite_code": inviteCode})

	room, err := s.roomRepo.FindByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Failed to find room by invite code: not found")
			return nil, ErrInvalidInviteCode
		}
		logCtx.WithError(err).Warn("Failed to find room by invite code: repository error")
		return nil, ErrInternalServer
	}

	logCtx.WithField("room_id", room.ID).Info("User resolved room by invite code")
	return room, nil
}

// FindRoomByID 按 ID 查找房间, 供 HTTP 与 WebSocket 入口共用。
func (s *RoomService) FindRoomByID(ctx context.Context, roomID uint) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("FindRoomByID: repository error")
		return nil, ErrInternalServer
	}
	return room, nil
}

// RoomExists 只回答房间是否存在, 客户端连接前的预检使用。
func (s *RoomService) RoomExists(ctx context.Context, roomID uint) (bool, error) {
	_, err := s.FindRoomByID(ctx, roomID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrRoomNotFound) {
		return false, nil
	}
	return false, err
}

// ListShapes 返回房间内全部图形的线上编码, 按创建顺序排列。
// 权威 id 存放在记录主键上, 这里读出时写回每个图形的 id 字段。
func (s *RoomService) ListShapes(ctx context.Context, roomID uint) ([]string, error) {
	if _, err := s.FindRoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	records, err := s.shapeRepo.ListByRoom(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to list shapes for room")
		return nil, ErrInternalServer
	}

	shapes := make([]string, 0, len(records))
	for _, rec := range records {
		sh, err := shape.Decode(rec.Payload)
		if err != nil {
			// 坏记录跳过, 不让单条脏数据拖垮整个房间的加载
			logrus.WithError(err).WithField("shape_id", rec.ID).Warn("Skipping undecodable shape record")
			continue
		}
		sh.ID = strconv.FormatUint(uint64(rec.ID), 10)
		enc, err := shape.Encode(sh)
		if err != nil {
			logrus.WithError(err).WithField("shape_id", rec.ID).Warn("Skipping unencodable shape record")
			continue
		}
		shapes = append(shapes, enc)
	}
	return shapes, nil
}

// --- 私有辅助函数 ---

// generateUniqueInviteCode 生成唯一的邀请码
func (s *RoomService) generateUniqueInviteCode(ctx context.Context) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const codeLength = 6
	const maxAttempts = 10

	b := make([]byte, codeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = letters[int(b[i])%len(letters)]
		}
		code := string(b)

		exists, err := s.roomRepo.IsInviteCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("database error checking invite code: %w", err)
		}
		if !exists {
			return code, nil
		}
		logrus.WithField("invite_code", code).Warnf("Generated invite code already exists, retrying (attempt %d)", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique invite code after %d attempts", maxAttempts)
}
