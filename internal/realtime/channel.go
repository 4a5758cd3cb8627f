// Package realtime delivers room message events to subscribers, either by
// filtering a multiplexed event stream (push) or by periodically fetching the
// latest message (poll).
package realtime

import (
	"context"
	"errors"
	"log"

	"chat-sync/internal/models"
)

// Handler receives events for one subscribed room. Handlers must not call
// the Unsubscribe of their own subscription synchronously.
type Handler func(models.MessageEvent)

// Unsubscribe stops delivery. It is idempotent; once it returns the handler
// is never invoked again.
type Unsubscribe func()

// DeliveryChannel is the strategy behind room subscriptions.
type DeliveryChannel interface {
	Subscribe(ctx context.Context, roomID string, handler Handler) (Unsubscribe, error)
	Close() error
}

// Publisher accepts message events for distribution.
type Publisher interface {
	Publish(ctx context.Context, event models.MessageEvent) error
}

// Source exposes a single stream carrying events for every room. The
// returned channel is closed when ctx is cancelled.
type Source interface {
	Stream(ctx context.Context) <-chan models.MessageEvent
}

var ErrEmptyRoomID = errors.New("room id is required")

// MultiPublisher fans an event out to several publishers. Every publisher
// is attempted; the errors are joined.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event models.MessageEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			log.Printf("event publish failed type=%s room_id=%s: %v", event.Type, event.RoomID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ DeliveryChannel = (*PushChannel)(nil)
	_ DeliveryChannel = (*PollChannel)(nil)
	_ Publisher       = (*Broker)(nil)
	_ Source          = (*Broker)(nil)
	_ Publisher       = (*RedisBus)(nil)
	_ Publisher       = MultiPublisher(nil)
)
