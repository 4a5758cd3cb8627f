package realtime

import (
	"context"
	"sync"

	"chat-sync/internal/models"
)

const defaultBufferSize = 64

// Broker is the in-process event channel. Every stream sees every event;
// filtering by room happens in the delivery channel.
type Broker struct {
	subs       map[chan models.MessageEvent]struct{}
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
}

// NewBroker creates a broker with the default per-stream buffer.
func NewBroker() *Broker {
	return NewBrokerWithBuffer(defaultBufferSize)
}

// NewBrokerWithBuffer creates a broker with a custom per-stream buffer.
func NewBrokerWithBuffer(size int) *Broker {
	return &Broker{
		subs:       make(map[chan models.MessageEvent]struct{}),
		done:       make(chan struct{}),
		bufferSize: size,
	}
}

// Stream opens a new subscription to all events. The channel is closed when
// ctx is cancelled or the broker is closed.
func (b *Broker) Stream(ctx context.Context) <-chan models.MessageEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan models.MessageEvent)
		close(ch)
		return ch
	default:
	}

	sub := make(chan models.MessageEvent, b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()

		select {
		case <-b.done:
			return
		default:
		}

		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Publish delivers an event to every stream without blocking; a stream
// whose buffer is full misses the event.
func (b *Broker) Publish(_ context.Context, event models.MessageEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return nil
	default:
	}

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
	return nil
}

// Close shuts down the broker and all streams.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	close(b.done)
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// StreamCount returns the number of open streams.
func (b *Broker) StreamCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
