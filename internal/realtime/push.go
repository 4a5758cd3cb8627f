package realtime

import (
	"context"
	"errors"
	"sync"

	"chat-sync/internal/models"
)

var (
	ErrChannelClosed = errors.New("delivery channel closed")
	ErrNilHandler    = errors.New("handler is required")
)

// PushChannel listens to one multiplexed Source and routes each event to the
// single handler registered for its room. Events for other rooms are dropped.
type PushChannel struct {
	source Source

	mu       sync.Mutex
	handlers map[string]*registration
	cancel   context.CancelFunc
	closed   bool
}

type registration struct {
	mu      sync.Mutex
	handler Handler
	stopped bool
}

func (r *registration) deliver(event models.MessageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.handler(event)
}

// stop waits for an in-flight delivery to finish.
func (r *registration) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// NewPushChannel creates a push-style channel over source. The stream is
// opened lazily on the first subscription.
func NewPushChannel(source Source) *PushChannel {
	return &PushChannel{
		source:   source,
		handlers: make(map[string]*registration),
	}
}

// Subscribe registers handler for roomID, replacing and stopping any prior
// handler for the same room.
func (p *PushChannel) Subscribe(ctx context.Context, roomID string, handler Handler) (Unsubscribe, error) {
	if roomID == "" {
		return nil, ErrEmptyRoomID
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	reg := &registration{handler: handler}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrChannelClosed
	}
	if prior, ok := p.handlers[roomID]; ok {
		prior.stop()
	}
	p.handlers[roomID] = reg
	if p.cancel == nil {
		streamCtx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		go p.dispatch(p.source.Stream(streamCtx))
	}
	p.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			p.mu.Lock()
			if p.handlers[roomID] == reg {
				delete(p.handlers, roomID)
			}
			p.mu.Unlock()
			reg.stop()
		})
	}
	stopAfter := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stopAfter()
		unsubscribe()
	}, nil
}

func (p *PushChannel) dispatch(events <-chan models.MessageEvent) {
	for event := range events {
		p.mu.Lock()
		reg := p.handlers[event.RoomID]
		p.mu.Unlock()
		if reg != nil {
			reg.deliver(event)
		}
	}
}

// Close stops every registration and the underlying stream.
func (p *PushChannel) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	regs := p.handlers
	p.handlers = make(map[string]*registration)
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	for _, reg := range regs {
		reg.stop()
	}
	return nil
}

// Rooms returns the number of rooms with a registered handler.
func (p *PushChannel) Rooms() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}
