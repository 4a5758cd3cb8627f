package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/chat"
	"chat-sync/internal/middleware"
	"chat-sync/internal/telemetry"
)

type auditing struct {
	audit *telemetry.AuditEmitter
}

func currentUser(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// requireParticipant writes 403 or 500 and returns false unless the caller
// belongs to roomID.
func requireParticipant(c *gin.Context, ops chat.Operations, roomID string) bool {
	member, err := ops.IsParticipant(c.Request.Context(), roomID, currentUser(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return false
	}
	return true
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, chat.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return v, true
}
