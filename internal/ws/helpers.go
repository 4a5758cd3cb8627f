package ws

import (
	"context"
	"time"

	"chat-sync/internal/observability"
)

const wsRoutingKey = "ws_events.rooms"

// publishLifecycle mirrors a connect, disconnect or error to the event
// exchange and counts it.
func publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	envelope := observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Headers:   observability.BuildHeaders(info.RequestID, info.TraceID),
		Payload:   info.lifecyclePayload(event, reason, time.Now()),
	}
	_ = observability.PublishEvent(ctx, wsRoutingKey, envelope)
}
