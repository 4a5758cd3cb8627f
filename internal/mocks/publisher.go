package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// PublisherMock stands in for the RabbitMQ publisher used by the audit
// emitter and the event mirror.
type PublisherMock struct {
	mock.Mock
}

// AcceptAll makes every Publish and Close succeed, for tests that only
// inspect what was published.
func (m *PublisherMock) AcceptAll() *PublisherMock {
	m.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.On("Close").Return(nil)
	return m
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Published returns the events sent to routingKey, in call order.
func (m *PublisherMock) Published(routingKey string) []any {
	var events []any
	for _, call := range m.Calls {
		if call.Method != "Publish" || len(call.Arguments) < 3 {
			continue
		}
		if key, _ := call.Arguments.Get(1).(string); key == routingKey {
			events = append(events, call.Arguments.Get(2))
		}
	}
	return events
}
