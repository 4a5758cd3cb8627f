package chat

import (
	"context"
	"fmt"
	"time"

	"chat-sync/internal/observability"
	"chat-sync/internal/repositories"
)

// Ledger keeps each room's last message, last activity and message count
// current. It is written after the message insert, outside any transaction.
type Ledger struct {
	rooms repositories.RoomRepository
}

// NewLedger constructs a Ledger.
func NewLedger(rooms repositories.RoomRepository) *Ledger {
	return &Ledger{rooms: rooms}
}

// Touch records messageID as the room's latest message at time at.
func (l *Ledger) Touch(ctx context.Context, roomID, messageID string, at time.Time) error {
	if err := l.rooms.Touch(ctx, roomID, messageID, at); err != nil {
		observability.IncLedgerFailure()
		return fmt.Errorf("touch room %s: %w", roomID, err)
	}
	return nil
}
