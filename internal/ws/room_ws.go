package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-sync/internal/chat"
	"chat-sync/internal/identity"
	"chat-sync/internal/middleware"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/realtime"
)

// RoomWebSocketHandler streams a room's message events to a participant.
type RoomWebSocketHandler struct {
	hub        *Hub
	ops        chat.Operations
	verifier   middleware.TokenVerifier
	newChannel func() realtime.DeliveryChannel
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler. newChannel is
// called once per connection.
func NewRoomWebSocketHandler(hub *Hub, ops chat.Operations, verifier middleware.TokenVerifier, newChannel func() realtime.DeliveryChannel) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{hub: hub, ops: ops, verifier: verifier, newChannel: newChannel}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is what a connected client may send.
type clientFrame struct {
	Action    string `json:"action"`
	MessageID string `json:"message_id,omitempty"`
}

// serverFrame answers a clientFrame.
type serverFrame struct {
	Type    string `json:"type"`
	Updated int    `json:"updated,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handle authenticates, checks membership, upgrades and subscribes.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	ctx, span := otel.Tracer("chat-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	span.SetAttributes(attribute.String("room.id", roomID))
	c.Request = c.Request.WithContext(ctx)

	token, err := identity.TokenFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if identity.IsReserved(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "reserved identity"})
		return
	}

	member, err := h.ops.IsParticipant(ctx, roomID, userID)
	if err != nil {
		log.Printf("websocket membership check failed room_id=%s: %v", roomID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for room"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := newConnInfo(c.Request, roomID, userID, span.SpanContext().TraceID().String(), time.Now())
	client := newClient(conn, info)
	h.hub.Add(client)
	observability.IncWSActive()

	// The request context ends when Handle returns; the connection outlives it.
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	publishLifecycle(connCtx, "ws_connect", info, "")

	subs := realtime.NewSubscriptions(h.newChannel())
	_, err = subs.Subscribe(connCtx, roomID, func(event models.MessageEvent) {
		if err := client.WriteJSON(event); err != nil {
			log.Printf("websocket write error conn_id=%s: %v", info.ConnID, err)
			publishLifecycle(connCtx, "ws_error", info, err.Error())
			client.Close(websocket.CloseInternalServerErr, "write failed")
		}
	})
	if err != nil {
		log.Printf("websocket subscribe failed room_id=%s: %v", roomID, err)
		client.Close(websocket.CloseInternalServerErr, "subscribe failed")
	}

	go h.readLoop(connCtx, cancel, client, subs)
}

func (h *RoomWebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, client *Client, subs *realtime.Subscriptions) {
	var closeReason string
	defer func() {
		_ = subs.Close()
		h.hub.Remove(client)
		observability.DecWSActive()
		publishLifecycle(ctx, "ws_disconnect", client.info, closeReason)
		cancel()
		_ = client.conn.Close()
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishLifecycle(ctx, "ws_error", client.info, closeReason)
			}
			return
		}
		reply := h.handleFrame(ctx, client.info, data)
		if err := client.WriteJSON(reply); err != nil {
			closeReason = err.Error()
			return
		}
	}
}

func (h *RoomWebSocketHandler) handleFrame(ctx context.Context, info ConnInfo, data []byte) serverFrame {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return serverFrame{Type: "error", Error: "invalid frame"}
	}

	switch frame.Action {
	case "ping":
		return serverFrame{Type: "pong"}
	case "read":
		msg, err := h.ops.GetMessage(ctx, frame.MessageID)
		if err != nil || msg.RoomID != info.RoomID {
			return serverFrame{Type: "error", Error: "message not found"}
		}
		if _, err := h.ops.MarkMessageAsRead(ctx, msg.ID, info.UserID); err != nil {
			return serverFrame{Type: "error", Error: "failed to mark read"}
		}
		return serverFrame{Type: "read.ack", Updated: 1}
	case "read_room":
		updated, err := h.ops.MarkRoomAsRead(ctx, info.RoomID, info.UserID)
		if err != nil {
			return serverFrame{Type: "error", Error: "failed to mark read"}
		}
		return serverFrame{Type: "read.ack", Updated: updated}
	default:
		return serverFrame{Type: "error", Error: "unknown action"}
	}
}
