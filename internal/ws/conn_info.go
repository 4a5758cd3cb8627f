package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"chat-sync/internal/observability"
)

// ConnInfo identifies one websocket connection to a room.
type ConnInfo struct {
	ConnID      string
	RoomID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, roomID, userID, traceID string, now time.Time) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		RoomID:      roomID,
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(r),
		IP:          observability.IPFromRequest(r),
		RequestID:   observability.RequestIDFromRequest(r),
		TraceID:     traceID,
		ConnectedAt: now,
	}
}

// lifecyclePayload is the body of a ws_events envelope. Duration is zero for
// the connect event itself.
func (i ConnInfo) lifecyclePayload(event, reason string, now time.Time) map[string]interface{} {
	var duration int64
	if event != "ws_connect" && !i.ConnectedAt.IsZero() {
		duration = now.Sub(i.ConnectedAt).Milliseconds()
	}
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"room_id":     i.RoomID,
			"event":       event,
			"conn_id":     i.ConnID,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   i.UserID,
			"device_id": i.DeviceID,
			"ip":        i.IP,
		},
	}
}
