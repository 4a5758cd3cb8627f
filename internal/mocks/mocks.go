package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/chat"
	"chat-sync/internal/models"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) ResolveDirectRoom(ctx context.Context, a, b string) (models.Room, error) {
	args := m.Called(ctx, a, b)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *ChatServiceMock) CreateRoom(ctx context.Context, req chat.NewRoom) (models.Room, error) {
	args := m.Called(ctx, req)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *ChatServiceMock) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *ChatServiceMock) GetUserRooms(ctx context.Context, userID string) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *ChatServiceMock) DeactivateRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *ChatServiceMock) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatServiceMock) SendMessage(ctx context.Context, req chat.SendRequest) (chat.SendResult, error) {
	args := m.Called(ctx, req)
	var res chat.SendResult
	if val := args.Get(0); val != nil {
		res = val.(chat.SendResult)
	}
	return res, args.Error(1)
}

func (m *ChatServiceMock) GetRoomMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ChatServiceMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) EditMessage(ctx context.Context, messageID, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) DeleteMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) MarkMessageAsRead(ctx context.Context, messageID, userID string) (models.Message, error) {
	args := m.Called(ctx, messageID, userID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) MarkRoomAsRead(ctx context.Context, roomID, userID string) (int, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Int(0), args.Error(1)
}

func (m *ChatServiceMock) SearchMessages(ctx context.Context, roomID, query string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, query, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ChatServiceMock) GetUnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Int(0), args.Error(1)
}

func (m *ChatServiceMock) LatestMessage(ctx context.Context, roomID string) (*models.Message, error) {
	args := m.Called(ctx, roomID)
	var msg *models.Message
	if val := args.Get(0); val != nil {
		msg = val.(*models.Message)
	}
	return msg, args.Error(1)
}

var _ chat.Operations = (*ChatServiceMock)(nil)
