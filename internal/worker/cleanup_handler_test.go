package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/tasks"
)

type mockShapeRepo struct{ mock.Mock }

func (m *mockShapeRepo) Create(ctx context.Context, roomID, ownerID uint, payload string) (uint, error) {
	args := m.Called(ctx, roomID, ownerID, payload)
	return args.Get(0).(uint), args.Error(1)
}

func (m *mockShapeRepo) Update(ctx context.Context, id uint, payload string) error {
	return m.Called(ctx, id, payload).Error(0)
}

func (m *mockShapeRepo) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockShapeRepo) ListByRoom(ctx context.Context, roomID uint) ([]domain.ShapeRecord, error) {
	args := m.Called(ctx, roomID)
	if r := args.Get(0); r != nil {
		return r.([]domain.ShapeRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockShapeRepo) DeleteByRoom(ctx context.Context, roomID uint) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *mockShapeRepo) RoomsWithShapes(ctx context.Context) ([]uint, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]uint), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPresenceRepo struct{ mock.Mock }

func (m *mockPresenceRepo) Incr(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPresenceRepo) Decr(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPresenceRepo) Count(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPresenceRepo) Clear(ctx context.Context, roomID uint) error {
	return m.Called(ctx, roomID).Error(0)
}

func TestRoomCleanupDeletesShapesWhenEmpty(t *testing.T) {
	shapes := &mockShapeRepo{}
	presence := &mockPresenceRepo{}
	presence.On("Count", mock.Anything, uint(5)).Return(int64(0), nil)
	shapes.On("DeleteByRoom", mock.Anything, uint(5)).Return(nil)
	presence.On("Clear", mock.Anything, uint(5)).Return(nil)

	task, err := tasks.NewRoomCleanupTask(5)
	require.NoError(t, err)

	h := NewRoomCleanupHandler(shapes, presence)
	assert.NoError(t, h.ProcessTask(context.Background(), task))
	shapes.AssertExpectations(t)
	presence.AssertExpectations(t)
}

func TestRoomCleanupSkipsRepopulatedRoom(t *testing.T) {
	shapes := &mockShapeRepo{}
	presence := &mockPresenceRepo{}
	presence.On("Count", mock.Anything, uint(5)).Return(int64(2), nil)

	task, err := tasks.NewRoomCleanupTask(5)
	require.NoError(t, err)

	h := NewRoomCleanupHandler(shapes, presence)
	assert.NoError(t, h.ProcessTask(context.Background(), task))
	shapes.AssertNotCalled(t, "DeleteByRoom", mock.Anything, mock.Anything)
}

func TestRoomCleanupRetriesOnPresenceError(t *testing.T) {
	shapes := &mockShapeRepo{}
	presence := &mockPresenceRepo{}
	presence.On("Count", mock.Anything, uint(5)).Return(int64(0), assert.AnError)

	task, err := tasks.NewRoomCleanupTask(5)
	require.NoError(t, err)

	h := NewRoomCleanupHandler(shapes, presence)
	err = h.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestRoomCleanupBadPayloadSkipsRetry(t *testing.T) {
	h := NewRoomCleanupHandler(&mockShapeRepo{}, &mockPresenceRepo{})
	task := asynq.NewTask(tasks.TypeRoomCleanup, []byte("{nope"))

	err := h.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestRoomSweepDeletesOnlyEmptyRooms(t *testing.T) {
	shapes := &mockShapeRepo{}
	presence := &mockPresenceRepo{}
	shapes.On("RoomsWithShapes", mock.Anything).Return([]uint{1, 2, 3}, nil)
	presence.On("Count", mock.Anything, uint(1)).Return(int64(0), nil)
	presence.On("Count", mock.Anything, uint(2)).Return(int64(4), nil)
	presence.On("Count", mock.Anything, uint(3)).Return(int64(0), nil)
	shapes.On("DeleteByRoom", mock.Anything, uint(1)).Return(nil)
	shapes.On("DeleteByRoom", mock.Anything, uint(3)).Return(nil)
	presence.On("Clear", mock.Anything, uint(1)).Return(nil)
	presence.On("Clear", mock.Anything, uint(3)).Return(nil)

	h := NewRoomSweepHandler(shapes, presence)
	assert.NoError(t, h.ProcessTask(context.Background(), tasks.NewRoomSweepTask()))
	shapes.AssertExpectations(t)
	shapes.AssertNotCalled(t, "DeleteByRoom", mock.Anything, uint(2))
}

func TestRoomSweepContinuesPastFailures(t *testing.T) {
	shapes := &mockShapeRepo{}
	presence := &mockPresenceRepo{}
	shapes.On("RoomsWithShapes", mock.Anything).Return([]uint{1, 2}, nil)
	presence.On("Count", mock.Anything, uint(1)).Return(int64(0), assert.AnError)
	presence.On("Count", mock.Anything, uint(2)).Return(int64(0), nil)
	shapes.On("DeleteByRoom", mock.Anything, uint(2)).Return(nil)
	presence.On("Clear", mock.Anything, uint(2)).Return(nil)

	h := NewRoomSweepHandler(shapes, presence)
	assert.NoError(t, h.ProcessTask(context.Background(), tasks.NewRoomSweepTask()))
	shapes.AssertExpectations(t)
}
