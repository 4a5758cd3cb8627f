package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/chat"
	"chat-sync/internal/models"
	"chat-sync/internal/telemetry"
)

// RoomHandler serves room directory endpoints.
type RoomHandler struct {
	auditing
	ops chat.Operations
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(ops chat.Operations, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{auditing: auditing{audit: audit}, ops: ops}
}

// ListRooms returns the caller's active rooms, most recently active first.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.ops.GetUserRooms(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err, "failed to load rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom creates a group, pod or AI room owned by the caller.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req chat.NewRoom
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.CreatorID = currentUser(c)

	room, err := h.ops.CreateRoom(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "could not create room")
		return
	}

	h.emit(c, "room created", room.ID)
	c.JSON(http.StatusCreated, room)
}

// ResolveDirectRoom returns or creates the caller's direct room with a peer.
func (h *RoomHandler) ResolveDirectRoom(c *gin.Context) {
	var req struct {
		PeerID string `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.ops.ResolveDirectRoom(c.Request.Context(), currentUser(c), req.PeerID)
	if err != nil {
		writeError(c, err, "could not resolve direct room")
		return
	}
	c.JSON(http.StatusOK, room)
}

// GetRoom returns one room the caller belongs to.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	if !room.HasParticipant(currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}
	c.JSON(http.StatusOK, room)
}

// DeactivateRoom hides a room; only its creator may do so.
func (h *RoomHandler) DeactivateRoom(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	if room.CreatedBy != currentUser(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can deactivate a room"})
		return
	}

	if err := h.ops.DeactivateRoom(c.Request.Context(), room.ID); err != nil {
		writeError(c, err, "could not deactivate room")
		return
	}

	h.emit(c, "room deactivated", room.ID)
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) loadRoom(c *gin.Context) (models.Room, bool) {
	room, err := h.ops.GetRoom(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		writeError(c, err, "failed to load room")
		return models.Room{}, false
	}
	return room, true
}
