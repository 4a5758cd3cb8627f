package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/chat"
	"chat-sync/internal/models"
	"chat-sync/internal/telemetry"
)

// MessageHandler serves message, search and read-state endpoints.
type MessageHandler struct {
	auditing
	ops chat.Operations
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(ops chat.Operations, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{auditing: auditing{audit: audit}, ops: ops}
}

// ListMessages returns a chronological page; offset 0 is the newest page.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if !requireParticipant(c, h.ops, roomID) {
		return
	}
	limit, ok := queryInt(c, "limit", chat.DefaultPageSize)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	msgs, err := h.ops.GetRoomMessages(c.Request.Context(), roomID, limit, offset)
	if err != nil {
		writeError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type sendMessageRequest struct {
	Content     string             `json:"content"`
	Type        models.MessageType `json:"type"`
	ReplyTo     *string            `json:"reply_to"`
	Attachments models.Attachments `json:"attachments"`
	Mentions    []string           `json:"mentions"`
}

// SendMessage stores a message from the caller.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	roomID := c.Param("room_id")
	if !requireParticipant(c, h.ops, roomID) {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == models.MessageAI || req.Type == models.MessageSystem {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message type not allowed"})
		return
	}
	if req.ReplyTo != nil {
		parent, err := h.ops.GetMessage(c.Request.Context(), *req.ReplyTo)
		if err != nil || parent.RoomID != roomID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reply_to must reference a message in this room"})
			return
		}
	}

	res, err := h.ops.SendMessage(c.Request.Context(), chat.SendRequest{
		RoomID:      roomID,
		SenderID:    currentUser(c),
		Content:     req.Content,
		Type:        req.Type,
		ReplyTo:     req.ReplyTo,
		Attachments: req.Attachments,
		Mentions:    req.Mentions,
	})
	if err != nil {
		writeError(c, err, "failed to store message")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// SearchMessages finds messages containing q.
func (h *MessageHandler) SearchMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if !requireParticipant(c, h.ops, roomID) {
		return
	}
	limit, ok := queryInt(c, "limit", chat.DefaultPageSize)
	if !ok {
		return
	}

	msgs, err := h.ops.SearchMessages(c.Request.Context(), roomID, c.Query("q"), limit)
	if err != nil {
		writeError(c, err, "search failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// UnreadCount returns how many messages the caller has not read.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	roomID := c.Param("room_id")
	if !requireParticipant(c, h.ops, roomID) {
		return
	}
	count, err := h.ops.GetUnreadCount(c.Request.Context(), roomID, currentUser(c))
	if err != nil {
		writeError(c, err, "failed to count unread")
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "unread": count})
}

// MarkRoomRead marks everything in the room as read by the caller.
func (h *MessageHandler) MarkRoomRead(c *gin.Context) {
	roomID := c.Param("room_id")
	if !requireParticipant(c, h.ops, roomID) {
		return
	}
	updated, err := h.ops.MarkRoomAsRead(c.Request.Context(), roomID, currentUser(c))
	if err != nil {
		writeError(c, err, "failed to mark room read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// EditMessage replaces the content of the caller's own message.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	msg, ok := h.loadOwnMessage(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	edited, err := h.ops.EditMessage(c.Request.Context(), msg.ID, req.Content)
	if err != nil {
		writeError(c, err, "could not edit message")
		return
	}

	h.emit(c, "message edited", msg.ID)
	c.JSON(http.StatusOK, edited)
}

// DeleteMessage tombstones the caller's own message.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	msg, ok := h.loadOwnMessage(c)
	if !ok {
		return
	}

	deleted, err := h.ops.DeleteMessage(c.Request.Context(), msg.ID)
	if err != nil {
		writeError(c, err, "could not delete message")
		return
	}

	h.emit(c, "message deleted", msg.ID)
	c.JSON(http.StatusOK, deleted)
}

// MarkMessageRead records that the caller has read one message.
func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	msg, err := h.ops.GetMessage(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		writeError(c, err, "failed to load message")
		return
	}
	if !requireParticipant(c, h.ops, msg.RoomID) {
		return
	}

	updated, err := h.ops.MarkMessageAsRead(c.Request.Context(), msg.ID, currentUser(c))
	if err != nil {
		writeError(c, err, "failed to mark read")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *MessageHandler) loadOwnMessage(c *gin.Context) (models.Message, bool) {
	msg, err := h.ops.GetMessage(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		writeError(c, err, "failed to load message")
		return models.Message{}, false
	}
	if msg.SenderID != currentUser(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can change a message"})
		return models.Message{}, false
	}
	return msg, true
}
