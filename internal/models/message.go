package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// MessageType tags the kind of content a message carries.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageVoice  MessageType = "voice"
	MessageSystem MessageType = "system"
	MessageAI     MessageType = "ai"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageVoice, MessageSystem, MessageAI:
		return true
	}
	return false
}

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "This message was deleted"

// AIAssistantID is the sender identity of AI-authored replies.
const AIAssistantID = "ai-assistant"

// Attachment references a stored object; the bytes live elsewhere.
type Attachment struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	URL    string `json:"url,omitempty"`
}

// Attachments is stored as a jsonb column.
type Attachments []Attachment

// Value implements driver.Valuer.
func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("attachments: unsupported source type")
	}
}

// Message is a single authored unit of content within a room.
type Message struct {
	ID          string         `db:"id" json:"id"`
	RoomID      string         `db:"room_id" json:"room_id"`
	SenderID    string         `db:"sender_id" json:"sender_id"`
	Content     string         `db:"content" json:"content"`
	Type        MessageType    `db:"type" json:"type"`
	ReplyTo     *string        `db:"reply_to" json:"reply_to,omitempty"`
	Attachments Attachments    `db:"attachments" json:"attachments,omitempty"`
	Mentions    pq.StringArray `db:"mentions" json:"mentions,omitempty"`
	AIGenerated bool           `db:"ai_generated" json:"ai_generated"`
	AIModel     *string        `db:"ai_model" json:"ai_model,omitempty"`
	Edited      bool           `db:"edited" json:"edited"`
	EditedAt    *time.Time     `db:"edited_at" json:"edited_at,omitempty"`
	Deleted     bool           `db:"deleted" json:"deleted"`
	ReadBy      pq.StringArray `db:"read_by" json:"read_by"`
	Seq         int64          `db:"seq" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// IsReadBy reports whether userID appears in the reader list.
func (m Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r == userID {
			return true
		}
	}
	return false
}
