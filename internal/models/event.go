package models

import "time"

// EventType names a change delivered over the realtime channel.
type EventType string

const (
	EventMessageCreated EventType = "message.created"
	EventMessageUpdated EventType = "message.updated"
	EventMessageDeleted EventType = "message.deleted"
	EventMessageRead    EventType = "message.read"
)

// MessageEvent is published once per message write and broadcast to room subscribers.
type MessageEvent struct {
	Type       EventType `json:"type"`
	RoomID     string    `json:"room_id"`
	Message    *Message  `json:"message,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
