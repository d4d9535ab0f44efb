package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collaborative-canvas/internal/domain"
)

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type mockRoomRepo struct{ mock.Mock }

func (m *mockRoomRepo) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomRepo) FindByInviteCode(ctx context.Context, code string) (*domain.Room, error) {
	args := m.Called(ctx, code)
	if r := args.Get(0); r != nil {
		return r.(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomRepo) Save(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *mockRoomRepo) IsInviteCodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

type mockShapeRepo struct{ mock.Mock }

func (m *mockShapeRepo) Create(ctx context.Context, roomID, ownerID uint, payload string) (uint, error) {
	args := m.Called(ctx, roomID, ownerID, payload)
	return args.Get(0).(uint), args.Error(1)
}

func (m *mockShapeRepo) Update(ctx context.Context, id uint, payload string) error {
	args := m.Called(ctx, id, payload)
	return args.Error(0)
}

func (m *mockShapeRepo) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockShapeRepo) ListByRoom(ctx context.Context, roomID uint) ([]domain.ShapeRecord, error) {
	args := m.Called(ctx, roomID)
	if r := args.Get(0); r != nil {
		return r.([]domain.ShapeRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockShapeRepo) DeleteByRoom(ctx context.Context, roomID uint) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
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
	args := m.Called(ctx, roomID)
	return args.Error(0)
}
