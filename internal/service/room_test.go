package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/shape"
)

func TestCreateRoomGeneratesInviteCode(t *testing.T) {
	roomRepo := &mockRoomRepo{}
	roomRepo.On("IsInviteCodeExists", mock.Anything, mock.MatchedBy(func(code string) bool {
		return len(code) == 6
	})).Return(false, nil).Once()
	roomRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Room")).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Room).ID = 3
	}).Return(nil)

	svc := NewRoomService(roomRepo, &mockShapeRepo{})
	room, err := svc.CreateRoom(context.Background(), 1, "brainstorm")
	require.NoError(t, err)
	assert.Equal(t, uint(3), room.ID)
	assert.Equal(t, "brainstorm", room.Name)
	assert.Equal(t, uint(1), room.CreatorID)
	assert.Len(t, room.InviteCode, 6)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomRetriesCollidingInviteCode(t *testing.T) {
	roomRepo := &mockRoomRepo{}
	roomRepo.On("IsInviteCodeExists", mock.Anything, mock.Anything).Return(true, nil).Once()
	roomRepo.On("IsInviteCodeExists", mock.Anything, mock.Anything).Return(false, nil).Once()
	roomRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	svc := NewRoomService(roomRepo, &mockShapeRepo{})
	_, err := svc.CreateRoom(context.Background(), 1, "")
	require.NoError(t, err)
	roomRepo.AssertExpectations(t)
}

func TestJoinRoomByInvite(t *testing.T) {
	roomRepo := &mockRoomRepo{}
	roomRepo.On("FindByInviteCode", mock.Anything, "ABC123").Return(&domain.Room{ID: 9}, nil)

	svc := NewRoomService(roomRepo, &mockShapeRepo{})
	room, err := svc.JoinRoomByInvite(context.Background(), 1, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, uint(9), room.ID)
}

func TestJoinRoomByInviteUnknownCode(t *testing.T) {
	roomRepo := &mockRoomRepo{}
	roomRepo.On("FindByInviteCode", mock.Anything, "NOPE00").Return(nil, repository.ErrRoomNotFound)

	svc := NewRoomService(roomRepo, &mockShapeRepo{})
	_, err := svc.JoinRoomByInvite(context.Background(), 1, "NOPE00")
	assert.ErrorIs(t, err, ErrInvalidInviteCode)
}

func TestRoomExists(t *testing.T) {
	roomRepo := &mockRoomRepo{}
	roomRepo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Room{ID: 1}, nil)
	roomRepo.On("FindByID", mock.Anything, uint(2)).Return(nil, repository.ErrRoomNotFound)

	svc := NewRoomService(roomRepo, &mockShapeRepo{})
	ok, err := svc.RoomExists(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.RoomExists(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListShapesStampsRecordID(t *testing.T) {
	payload, err := shape.Encode(&shape.Shape{
		Type:        shape.TypeRect,
		StrokeColor: "#000",
		StrokeWidth: 1,
		Geom:        &shape.BoxGeometry{Width: 10, Height: 10},
	})
	require.NoError(t, err)

	roomRepo := &mockRoomRepo{}
	roomRepo.On("FindByID", mock.Anything, uint(1)).Return(&domain.Room{ID: 1}, nil)
	shapeRepo := &mockShapeRepo{}
	shapeRepo.On("ListByRoom", mock.Anything, uint(1)).Return([]domain.ShapeRecord{
		{ID: 42, RoomID: 1, Payload: payload},
		{ID: 43, RoomID: 1, Payload: "{broken"},
	}, nil)

	svc := NewRoomService(roomRepo, shapeRepo)
	messages, err := svc.ListShapes(context.Background(), 1)
	require.NoError(t, err)
	// 坏记录被跳过, 正常记录带上主键 id
	require.Len(t, messages, 1)
	decoded, err := shape.Decode(messages[0])
	require.NoError(t, err)
	assert.Equal(t, "42", decoded.ID)
}

func TestListShapesUnknownRoom(t *testing.T) {
	roomRepo := &mockRoomRepo{}
	roomRepo.On("FindByID", mock.Anything, uint(5)).Return(nil, repository.ErrRoomNotFound)

	svc := NewRoomService(roomRepo, &mockShapeRepo{})
	_, err := svc.ListShapes(context.Background(), 5)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
