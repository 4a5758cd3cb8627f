package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// RedisBus publishes events on one Redis pub/sub channel shared by every
// room and every service instance, and relays what it receives into a
// local Broker.
type RedisBus struct {
	client  *redis.Client
	channel string
	local   *Broker
}

// NewRedisBus constructs a RedisBus relaying into local.
func NewRedisBus(client *redis.Client, channel string, local *Broker) *RedisBus {
	return &RedisBus{client: client, channel: channel, local: local}
}

// Publish implements Publisher.
func (b *RedisBus) Publish(ctx context.Context, event models.MessageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		observability.IncPublishError("redis")
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run relays events from Redis into the local broker until ctx is done.
func (b *RedisBus) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	log.Printf("redis relay subscribed channel=%s", b.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := decodeEvent(msg.Payload)
			if err != nil {
				log.Printf("redis relay dropped payload channel=%s: %v", b.channel, err)
				continue
			}
			_ = b.local.Publish(ctx, event)
		}
	}
}

func decodeEvent(payload string) (models.MessageEvent, error) {
	var event models.MessageEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return models.MessageEvent{}, err
	}
	if event.RoomID == "" {
		return models.MessageEvent{}, ErrEmptyRoomID
	}
	return event, nil
}
