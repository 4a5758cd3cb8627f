package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/chat"
	"chat-sync/internal/middleware"
	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/telemetry"
)

func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func setupRoomRouter(handler *RoomHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser("u1"))
	r.GET("/rooms", handler.ListRooms)
	r.POST("/rooms", handler.CreateRoom)
	r.POST("/rooms/direct", handler.ResolveDirectRoom)
	r.GET("/rooms/:room_id", handler.GetRoom)
	r.DELETE("/rooms/:room_id", handler.DeactivateRoom)
	return r
}

func newAudit(pub *mocks.PublisherMock) *telemetry.AuditEmitter {
	return telemetry.NewAuditEmitter(pub, "audit.chat", "chat-sync", "test")
}

func TestListRoomsSuccess(t *testing.T) {
	ops := new(mocks.ChatServiceMock)
	router := setupRoomRouter(NewRoomHandler(ops, nil))

	ops.On("GetUserRooms", mock.Anything, "u1").Return([]models.Room{{ID: "r1"}, {ID: "r2"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Rooms []models.Room `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Rooms, 2)
	ops.AssertExpectations(t)
}

func TestCreateRoomUsesCallerAsCreator(t *testing.T) {
	ops := new(mocks.ChatServiceMock)
	pub := new(mocks.PublisherMock)
	router := setupRoomRouter(NewRoomHandler(ops, newAudit(pub)))

	ops.On("CreateRoom", mock.Anything, mock.MatchedBy(func(req chat.NewRoom) bool {
		return req.CreatorID == "u1" && req.Type == models.RoomGroup && req.Name == "study"
	})).Return(models.Room{ID: "r9", Type: models.RoomGroup}, nil).Once()
	pub.On("Publish", mock.Anything, "audit.chat", mock.AnythingOfType("telemetry.AuditEnvelope")).Return(nil).Once()

	body := bytes.NewBufferString(`{"type":"group","name":"study","participants":["u2"],"creator_id":"mallory"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	ops.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCreateRoomValidationError(t *testing.T) {
	ops := new(mocks.ChatServiceMock)
	router := setupRoomRouter(NewRoomHandler(ops, nil))

	ops.On("CreateRoom", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: group rooms need a name", chat.ErrValidation)).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"type":"group"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "group rooms need a name")
}

func TestResolveDirectRoom(t *testing.T) {
	ops := new(mocks.ChatServiceMock)
	router := setupRoomRouter(NewRoomHandler(ops, nil))

	ops.On("ResolveDirectRoom", mock.Anything, "u1", "u2").Return(models.Room{ID: "d1", Type: models.RoomDirect}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/direct", bytes.NewBufferString(`{"peer_id":"u2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	ops.AssertExpectations(t)
}

func TestResolveDirectRoomRequiresPeer(t *testing.T) {
	router := setupRoomRouter(NewRoomHandler(new(mocks.ChatServiceMock), nil))

	req := httptest.NewRequest(http.MethodPost, "/rooms/direct", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveDirectRoomWithSelf(t *testing.T) {
	ops := new(mocks.ChatServiceMock)
	router := setupRoomRouter(NewRoomHandler(ops, nil))

	ops.On("ResolveDirectRoom", mock.Anything, "u1", "u1").
		Return(nil, fmt.Errorf("%w: a direct room needs two distinct participants", chat.ErrValidation)).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/direct", bytes.NewBufferString(`{"peer_id":"u1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRoom(t *testing.T) {
	ops := new(mocks.ChatServiceMock)
	router := setupRoomRouter(NewRoomHandler(ops, nil))

	ops.On("GetRoom", mock.Anything, "mine").Return(models.Room{ID: "mine", Participants: []string{"u1", "u2"}}, nil).Once()
	ops.On("GetRoom", mock.Anything, "theirs").Return(models.Room{ID: "theirs", Participants: []string{"u2", "u3"}}, nil).Once()
	ops.On("GetRoom", mock.Anything, "gone").Return(nil, chat.ErrRoomNotFound).Once()

	for path, want := range map[string]int{
		"/rooms/mine":   http.StatusOK,
		"/rooms/theirs": http.StatusForbidden,
		"/rooms/gone":   http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
	ops.AssertExpectations(t)
}

func TestDeactivateRoomCreatorOnly(t *testing.T) {
	ops := new(mocks.ChatServiceMock)
	pub := new(mocks.PublisherMock)
	router := setupRoomRouter(NewRoomHandler(ops, newAudit(pub)))

	ops.On("GetRoom", mock.Anything, "r1").Return(models.Room{ID: "r1", CreatedBy: "u2"}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rooms/r1", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	ops.AssertNotCalled(t, "DeactivateRoom", mock.Anything, mock.Anything)

	ops.On("GetRoom", mock.Anything, "r2").Return(models.Room{ID: "r2", CreatedBy: "u1"}, nil).Once()
	ops.On("DeactivateRoom", mock.Anything, "r2").Return(nil).Once()
	pub.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(nil).Once()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rooms/r2", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	ops.AssertExpectations(t)
	pub.AssertExpectations(t)
}
