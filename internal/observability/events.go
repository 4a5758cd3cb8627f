package observability

import (
	"context"
	"time"
)

// Publisher is satisfied by the RabbitMQ publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt time.Time   `json:"occurred_at"`
	Headers    Headers     `json:"headers,omitempty"`
	Payload    interface{} `json:"payload"`
}

type Headers map[string]string

func BuildHeaders(requestID, traceID string) Headers {
	headers := Headers{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent mirrors an operational event to the broker. It is a no-op
// until SetPublisher is called.
func PublishEvent(ctx context.Context, routingKey string, envelope EventEnvelope) error {
	if defaultPublisher == nil {
		return nil
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}

	err := defaultPublisher.Publish(ctx, routingKey, envelope)
	if err != nil {
		IncPublishError("amqp")
	}
	return err
}
