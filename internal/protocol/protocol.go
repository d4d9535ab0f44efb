// Package protocol 定义画布同步协议的消息信封与事件类型。
// 线上格式兼容既有客户端：外层信封是 JSON，payload.message 字段
// 本身又是图形的 JSON 字符串（双重编码是协议的一部分，必须保留）。
package protocol

import (
	"encoding/json"
	"fmt"
)

// 信封 type 字段的取值。
const (
	TypeJoinRoom  = "JOIN_ROOM"
	TypeLeaveRoom = "LEAVE_ROOM"
	// TypeCreateShape 沿用旧线上值 NEW_MESSAGE；入站分发同时接受
	// 别名 CREATE_SHAPE。
	TypeCreateShape      = "NEW_MESSAGE"
	TypeCreateShapeAlias = "CREATE_SHAPE"
	TypeUpdateShape      = "UPDATE_SHAPE"
	TypeDeleteShape      = "DELETE_SHAPE"
	// TypeAckShape 仅发给创建者：携带临时 id 到服务端 id 的映射，
	// 客户端据此完成 id 对账。
	TypeAckShape = "ACK_SHAPE"
	TypeError    = "ERROR"
)

// WebSocket 关闭码：区别于正常关闭的认证失败原因。
const (
	CloseNoToken     = 4001 // 连接 URL 未携带 token
	CloseAuthFailed  = 4002 // token 签名或有效期校验失败
)

// Envelope 是所有消息的外层信封 {type, payload}。
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinRoomPayload / LeaveRoomPayload 房间成员事件。
type JoinRoomPayload struct {
	RoomID uint `json:"roomId"`
}

type LeaveRoomPayload struct {
	RoomID uint `json:"roomId"`
}

// CreateShapePayload 创建图形。Message 是图形的 JSON 字符串；
// 服务端广播时 TempID 携带创建者使用过的临时 id。
type CreateShapePayload struct {
	Message string `json:"message"`
	RoomID  uint   `json:"roomId"`
	TempID  string `json:"tempId,omitempty"`
}

// UpdateShapePayload 更新图形，ShapeID 必须是服务端分配的权威 id。
type UpdateShapePayload struct {
	Message string `json:"message"`
	ShapeID string `json:"shapeId"`
	RoomID  uint   `json:"roomId"`
}

// DeleteShapePayload 删除图形。
type DeleteShapePayload struct {
	ShapeID string `json:"shapeId"`
	RoomID  uint   `json:"roomId"`
}

// AckShapePayload 创建确认：TempID 被 ShapeID 取代，Message 是
// 已写入权威 id 的完整图形。
type AckShapePayload struct {
	TempID  string `json:"tempId"`
	ShapeID string `json:"shapeId"`
	Message string `json:"message"`
}

// ErrorPayload 协议级错误帧，发回给发送者，连接保持打开。
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// 错误帧的 code 取值。
const (
	ErrCodeBadFrame     = "BAD_FRAME"
	ErrCodeUnknownType  = "UNKNOWN_TYPE"
	ErrCodeRoomNotFound = "ROOM_NOT_FOUND"
	ErrCodeNotInRoom    = "NOT_IN_ROOM"
	ErrCodeBadShape     = "BAD_SHAPE"
	ErrCodePersistence  = "PERSISTENCE_FAILED"
)

// Marshal 组装一条信封消息。
func Marshal(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// MarshalError 组装一条错误帧。
func MarshalError(code, message string) []byte {
	// ErrorPayload 只有字符串字段，序列化不会失败
	data, _ := Marshal(TypeError, ErrorPayload{Code: code, Message: message})
	return data
}
