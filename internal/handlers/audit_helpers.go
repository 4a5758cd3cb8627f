package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
)

const requestIDContextKey = observability.RequestIDKey

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID := c.GetString(middleware.UserIDKey); userID != "" {
		return &userID
	}
	return nil
}

func (h *auditing) emit(c *gin.Context, text, resourceID string) {
	h.audit.Emit(c.Request.Context(), "INFO", text, resourceID, requestIDFromContext(c), userIDFromContext(c))
}
