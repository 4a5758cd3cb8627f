package realtime

import (
	"context"
	"sync"
)

// Subscriptions holds at most one live subscription per room on top of a
// DeliveryChannel. It belongs to one client (one websocket connection).
type Subscriptions struct {
	channel DeliveryChannel

	mu     sync.Mutex
	active map[string]*subscription
}

type subscription struct {
	unsubscribe Unsubscribe
	once        sync.Once
}

func (s *subscription) stop() {
	s.once.Do(s.unsubscribe)
}

// NewSubscriptions takes ownership of channel; Close closes it.
func NewSubscriptions(channel DeliveryChannel) *Subscriptions {
	return &Subscriptions{
		channel: channel,
		active:  make(map[string]*subscription),
	}
}

// Subscribe tears down any existing subscription for roomID before
// creating the new one.
func (s *Subscriptions) Subscribe(ctx context.Context, roomID string, handler Handler) (Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.active[roomID]; ok {
		delete(s.active, roomID)
		prior.stop()
	}

	unsubscribe, err := s.channel.Subscribe(ctx, roomID, handler)
	if err != nil {
		return nil, err
	}
	sub := &subscription{unsubscribe: unsubscribe}
	s.active[roomID] = sub

	return func() {
		s.mu.Lock()
		if s.active[roomID] == sub {
			delete(s.active, roomID)
		}
		s.mu.Unlock()
		sub.stop()
	}, nil
}

// Unsubscribe stops the subscription for roomID, if any.
func (s *Subscriptions) Unsubscribe(roomID string) {
	s.mu.Lock()
	sub, ok := s.active[roomID]
	delete(s.active, roomID)
	s.mu.Unlock()
	if ok {
		sub.stop()
	}
}

// Active reports whether roomID currently has a subscription.
func (s *Subscriptions) Active(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[roomID]
	return ok
}

// Close stops every subscription and closes the channel.
func (s *Subscriptions) Close() error {
	s.mu.Lock()
	subs := s.active
	s.active = make(map[string]*subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return s.channel.Close()
}
