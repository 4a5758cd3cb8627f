package models

import (
	"time"

	"github.com/lib/pq"
)

// RoomType classifies a conversation room.
type RoomType string

const (
	RoomDirect RoomType = "direct"
	RoomGroup  RoomType = "group"
	RoomPod    RoomType = "pod"
	RoomAI     RoomType = "ai"
)

// Valid reports whether t is a known room type.
func (t RoomType) Valid() bool {
	switch t {
	case RoomDirect, RoomGroup, RoomPod, RoomAI:
		return true
	}
	return false
}

// Room is a conversation container. Direct rooms hold exactly two
// participants stored in sorted order.
type Room struct {
	ID             string         `db:"id" json:"id"`
	Type           RoomType       `db:"type" json:"type"`
	Name           string         `db:"name" json:"name,omitempty"`
	Participants   pq.StringArray `db:"participants" json:"participants"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	PodID          *string        `db:"pod_id" json:"pod_id,omitempty"`
	LastMessageID  *string        `db:"last_message_id" json:"last_message_id,omitempty"`
	LastActivityAt *time.Time     `db:"last_activity_at" json:"last_activity_at,omitempty"`
	MessageCount   int64          `db:"message_count" json:"message_count"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is an exact member of the room.
func (r Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
