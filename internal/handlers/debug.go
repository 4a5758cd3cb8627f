package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/telemetry"
)

// DebugOptions configures the debug-only endpoints.
type DebugOptions struct {
	Enabled bool
	Audit   *telemetry.AuditEmitter
	// Connections counts open websocket connections for a room, or for the
	// whole process when roomID is empty.
	Connections func(roomID string) int
}

type debugAuditRequest struct {
	Level      string `json:"level"`
	Text       string `json:"text"`
	ResourceID string `json:"resource_id"`
}

var auditLevels = map[string]bool{"INFO": true, "WARN": true, "ERROR": true}

// RegisterDebugRoutes wires debug-only endpoints under /debug.
func RegisterDebugRoutes(router *gin.Engine, opts DebugOptions) {
	if !opts.Enabled {
		return
	}
	debug := router.Group("/debug")

	debug.POST("/audit", func(c *gin.Context) {
		if opts.Audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		var req debugAuditRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
				return
			}
		}
		level := strings.ToUpper(strings.TrimSpace(req.Level))
		if level == "" {
			level = "INFO"
		}
		if !auditLevels[level] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be INFO, WARN or ERROR"})
			return
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			text = "audit test"
		}
		requestID := requestIDFromContext(c)
		opts.Audit.Emit(c.Request.Context(), level, text, req.ResourceID, requestID, userIDFromContext(c))
		c.JSON(http.StatusAccepted, gin.H{"status": "emitted", "request_id": requestID})
	})

	debug.GET("/connections", func(c *gin.Context) {
		if opts.Connections == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "connection stats not configured"})
			return
		}
		roomID := c.Query("room_id")
		c.JSON(http.StatusOK, gin.H{"room_id": roomID, "connections": opts.Connections(roomID)})
	})

	debug.GET("/routes", func(c *gin.Context) {
		routes := router.Routes()
		out := make([]string, 0, len(routes))
		for _, r := range routes {
			out = append(out, r.Method+" "+r.Path)
		}
		sort.Strings(out)
		c.JSON(http.StatusOK, gin.H{"routes": out})
	})
}
