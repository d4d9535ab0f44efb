package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/hub"
	"collaborative-canvas/internal/protocol"
	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/shape"
)

// recordConn 实现 hub.Conn, 记录投递给会话的所有帧。
type recordConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recordConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *recordConn) Ping() error             { return nil }
func (c *recordConn) Close(int, string) error { return nil }

func (c *recordConn) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func (c *recordConn) lastOfType(t *testing.T, msgType string) (protocol.Envelope, bool) {
	t.Helper()
	envs := c.envelopes(t)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == msgType {
			return envs[i], true
		}
	}
	return protocol.Envelope{}, false
}

type syncFixture struct {
	svc       *SyncService
	hub       *hub.Hub
	roomRepo  *mockRoomRepo
	shapeRepo *mockShapeRepo
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	presence := &mockPresenceRepo{}
	presence.On("Incr", mock.Anything, mock.Anything).Return(int64(1), nil).Maybe()
	presence.On("Decr", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	h := hub.NewHub(presence, log)
	roomRepo := &mockRoomRepo{}
	shapeRepo := &mockShapeRepo{}
	return &syncFixture{
		svc:       NewSyncService(h, roomRepo, shapeRepo),
		hub:       h,
		roomRepo:  roomRepo,
		shapeRepo: shapeRepo,
	}
}

func (f *syncFixture) joinedSession(t *testing.T, userID uint, roomID uint) (*hub.Session, *recordConn) {
	t.Helper()
	conn := &recordConn{}
	sess := hub.NewSession(conn, userID, "tester")
	f.hub.Register(sess)

	f.roomRepo.On("FindByID", mock.Anything, roomID).Return(&domain.Room{ID: roomID}, nil).Maybe()
	frame, err := protocol.Marshal(protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: roomID})
	require.NoError(t, err)
	f.svc.HandleFrame(context.Background(), sess, frame)
	require.Equal(t, roomID, sess.RoomID())
	return sess, conn
}

func createFrame(t *testing.T, s *shape.Shape, roomID uint) []byte {
	t.Helper()
	message, err := shape.Encode(s)
	require.NoError(t, err)
	frame, err := protocol.Marshal(protocol.TypeCreateShape, protocol.CreateShapePayload{
		Message: message,
		RoomID:  roomID,
	})
	require.NoError(t, err)
	return frame
}

func TestHandleFrameMalformedEnvelope(t *testing.T) {
	f := newSyncFixture(t)
	conn := &recordConn{}
	sess := hub.NewSession(conn, 1, "tester")
	f.hub.Register(sess)

	f.svc.HandleFrame(context.Background(), sess, []byte("{nope"))

	env, ok := conn.lastOfType(t, protocol.TypeError)
	require.True(t, ok)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, protocol.ErrCodeBadFrame, p.Code)
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newSyncFixture(t)
	conn := &recordConn{}
	sess := hub.NewSession(conn, 1, "tester")
	f.hub.Register(sess)
	f.roomRepo.On("FindByID", mock.Anything, uint(99)).Return(nil, repository.ErrRoomNotFound)

	frame, _ := protocol.Marshal(protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: 99})
	f.svc.HandleFrame(context.Background(), sess, frame)

	assert.Equal(t, uint(0), sess.RoomID())
	env, ok := conn.lastOfType(t, protocol.TypeError)
	require.True(t, ok)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, protocol.ErrCodeRoomNotFound, p.Code)
}

func TestCreateShapeRequiresRoom(t *testing.T) {
	f := newSyncFixture(t)
	conn := &recordConn{}
	sess := hub.NewSession(conn, 1, "tester")
	f.hub.Register(sess)

	s := &shape.Shape{ID: "s1", Type: shape.TypeRect, StrokeColor: "#000", StrokeWidth: 1, Geom: &shape.BoxGeometry{Width: 10, Height: 10}}
	f.svc.HandleFrame(context.Background(), sess, createFrame(t, s, 1))

	env, ok := conn.lastOfType(t, protocol.TypeError)
	require.True(t, ok)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, protocol.ErrCodeNotInRoom, p.Code)
}

func TestCreateShapeReconcilesIDAndBroadcasts(t *testing.T) {
	f := newSyncFixture(t)
	sender, senderConn := f.joinedSession(t, 1, 1)
	_, peerConn := f.joinedSession(t, 2, 1)

	f.shapeRepo.On("Create", mock.Anything, uint(1), uint(1), mock.MatchedBy(func(payload string) bool {
		// 入库前临时 id 必须被清空
		decoded, err := shape.Decode(payload)
		return err == nil && decoded.ID == ""
	})).Return(uint(42), nil)

	s := &shape.Shape{
		ID:          "s1",
		Type:        shape.TypeRect,
		X:           10,
		Y:           20,
		StrokeColor: "#1e1e1e",
		StrokeWidth: 2,
		Geom:        &shape.BoxGeometry{Width: 100, Height: 50},
	}
	f.svc.HandleFrame(context.Background(), sender, createFrame(t, s, 1))

	// 同房间的对端收到携带权威 id 的创建事件
	env, ok := peerConn.lastOfType(t, protocol.TypeCreateShape)
	require.True(t, ok)
	var create protocol.CreateShapePayload
	require.NoError(t, json.Unmarshal(env.Payload, &create))
	assert.Equal(t, "s1", create.TempID)
	got, err := shape.Decode(create.Message)
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, 100.0, got.Geom.(*shape.BoxGeometry).Width)
	assert.Equal(t, 50.0, got.Geom.(*shape.BoxGeometry).Height)

	// 发送者只收 ACK, 不回显创建事件
	_, echoed := senderConn.lastOfType(t, protocol.TypeCreateShape)
	assert.False(t, echoed)
	ackEnv, ok := senderConn.lastOfType(t, protocol.TypeAckShape)
	require.True(t, ok)
	var ack protocol.AckShapePayload
	require.NoError(t, json.Unmarshal(ackEnv.Payload, &ack))
	assert.Equal(t, "s1", ack.TempID)
	assert.Equal(t, "42", ack.ShapeID)

	f.shapeRepo.AssertExpectations(t)
}

func TestCreateShapeAcceptsAlias(t *testing.T) {
	f := newSyncFixture(t)
	sender, senderConn := f.joinedSession(t, 1, 1)
	f.shapeRepo.On("Create", mock.Anything, uint(1), uint(1), mock.Anything).Return(uint(7), nil)

	s := &shape.Shape{ID: "tmp", Type: shape.TypeCircle, StrokeColor: "#000", StrokeWidth: 1, Geom: &shape.CircleGeometry{Radius: 5}}
	message, err := shape.Encode(s)
	require.NoError(t, err)
	frame, err := protocol.Marshal(protocol.TypeCreateShapeAlias, protocol.CreateShapePayload{Message: message, RoomID: 1})
	require.NoError(t, err)

	f.svc.HandleFrame(context.Background(), sender, frame)

	_, ok := senderConn.lastOfType(t, protocol.TypeAckShape)
	assert.True(t, ok)
}

func TestCreateShapePersistenceFailure(t *testing.T) {
	f := newSyncFixture(t)
	sender, senderConn := f.joinedSession(t, 1, 1)
	_, peerConn := f.joinedSession(t, 2, 1)
	f.shapeRepo.On("Create", mock.Anything, uint(1), uint(1), mock.Anything).Return(uint(0), assert.AnError)

	s := &shape.Shape{ID: "s1", Type: shape.TypeRect, StrokeColor: "#000", StrokeWidth: 1, Geom: &shape.BoxGeometry{Width: 10, Height: 10}}
	f.svc.HandleFrame(context.Background(), sender, createFrame(t, s, 1))

	// 落库失败不得广播
	_, broadcast := peerConn.lastOfType(t, protocol.TypeCreateShape)
	assert.False(t, broadcast)
	env, ok := senderConn.lastOfType(t, protocol.TypeError)
	require.True(t, ok)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, protocol.ErrCodePersistence, p.Code)
}

func TestUpdateShapeEchoesToSender(t *testing.T) {
	f := newSyncFixture(t)
	sender, senderConn := f.joinedSession(t, 1, 1)
	_, peerConn := f.joinedSession(t, 2, 1)
	f.shapeRepo.On("Update", mock.Anything, uint(42), mock.Anything).Return(nil)

	s := &shape.Shape{ID: "42", Type: shape.TypeRect, X: 5, StrokeColor: "#000", StrokeWidth: 1, Geom: &shape.BoxGeometry{Width: 10, Height: 10}}
	message, err := shape.Encode(s)
	require.NoError(t, err)
	frame, err := protocol.Marshal(protocol.TypeUpdateShape, protocol.UpdateShapePayload{
		Message: message, ShapeID: "42", RoomID: 1,
	})
	require.NoError(t, err)
	f.svc.HandleFrame(context.Background(), sender, frame)

	// 更新广播包含发送者, 各端收敛到同一份最终写入
	_, senderGot := senderConn.lastOfType(t, protocol.TypeUpdateShape)
	assert.True(t, senderGot)
	_, peerGot := peerConn.lastOfType(t, protocol.TypeUpdateShape)
	assert.True(t, peerGot)
	f.shapeRepo.AssertExpectations(t)
}

func TestUpdateMissingShape(t *testing.T) {
	f := newSyncFixture(t)
	sender, senderConn := f.joinedSession(t, 1, 1)
	f.shapeRepo.On("Update", mock.Anything, uint(42), mock.Anything).Return(repository.ErrShapeNotFound)

	s := &shape.Shape{ID: "42", Type: shape.TypeRect, StrokeColor: "#000", StrokeWidth: 1, Geom: &shape.BoxGeometry{Width: 10, Height: 10}}
	message, _ := shape.Encode(s)
	frame, _ := protocol.Marshal(protocol.TypeUpdateShape, protocol.UpdateShapePayload{
		Message: message, ShapeID: "42", RoomID: 1,
	})
	f.svc.HandleFrame(context.Background(), sender, frame)

	env, ok := senderConn.lastOfType(t, protocol.TypeError)
	require.True(t, ok)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, protocol.ErrCodeBadShape, p.Code)
}

func TestDeleteShapeExcludesSender(t *testing.T) {
	f := newSyncFixture(t)
	sender, senderConn := f.joinedSession(t, 1, 1)
	_, peerConn := f.joinedSession(t, 2, 1)
	f.shapeRepo.On("Delete", mock.Anything, uint(42)).Return(nil)

	frame, err := protocol.Marshal(protocol.TypeDeleteShape, protocol.DeleteShapePayload{ShapeID: "42", RoomID: 1})
	require.NoError(t, err)
	f.svc.HandleFrame(context.Background(), sender, frame)

	_, senderGot := senderConn.lastOfType(t, protocol.TypeDeleteShape)
	assert.False(t, senderGot)
	env, ok := peerConn.lastOfType(t, protocol.TypeDeleteShape)
	require.True(t, ok)
	var p protocol.DeleteShapePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "42", p.ShapeID)
	f.shapeRepo.AssertExpectations(t)
}

func TestDeleteShapeIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	sender, senderConn := f.joinedSession(t, 1, 1)
	f.shapeRepo.On("Delete", mock.Anything, uint(42)).Return(nil).Twice()

	frame, _ := protocol.Marshal(protocol.TypeDeleteShape, protocol.DeleteShapePayload{ShapeID: "42", RoomID: 1})
	f.svc.HandleFrame(context.Background(), sender, frame)
	f.svc.HandleFrame(context.Background(), sender, frame)

	_, errGot := senderConn.lastOfType(t, protocol.TypeError)
	assert.False(t, errGot)
	f.shapeRepo.AssertExpectations(t)
}

func TestUnknownMessageType(t *testing.T) {
	f := newSyncFixture(t)
	sender, senderConn := f.joinedSession(t, 1, 1)

	frame, _ := protocol.Marshal("TELEPORT", struct{}{})
	f.svc.HandleFrame(context.Background(), sender, frame)

	env, ok := senderConn.lastOfType(t, protocol.TypeError)
	require.True(t, ok)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, protocol.ErrCodeUnknownType, p.Code)
}

func TestLeaveRoom(t *testing.T) {
	f := newSyncFixture(t)
	sender, _ := f.joinedSession(t, 1, 1)

	frame, _ := protocol.Marshal(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: 1})
	f.svc.HandleFrame(context.Background(), sender, frame)

	assert.Equal(t, uint(0), sender.RoomID())
}
