package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// LatestFetcher returns the most recent live message of a room, or nil when
// the room has none.
type LatestFetcher interface {
	LatestMessage(ctx context.Context, roomID string) (*models.Message, error)
}

// seenWindow bounds how many delivered ids a poll subscription remembers.
// Only the latest message is fetched, so an id can only come back when newer
// messages are deleted.
const seenWindow = 64

// PollChannel re-fetches the latest message of each subscribed room on a
// fixed interval. A message id is handed to the handler at most once per
// subscription while it stays within the last seenWindow deliveries.
type PollChannel struct {
	fetcher  LatestFetcher
	interval time.Duration

	mu     sync.Mutex
	subs   map[*pollSubscription]struct{}
	closed bool
}

type pollSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *pollSubscription) stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// NewPollChannel creates a poll-style channel.
func NewPollChannel(fetcher LatestFetcher, interval time.Duration) *PollChannel {
	return &PollChannel{
		fetcher:  fetcher,
		interval: interval,
		subs:     make(map[*pollSubscription]struct{}),
	}
}

// Subscribe starts a polling loop for roomID. The first fetch happens one
// interval after subscribing.
func (p *PollChannel) Subscribe(ctx context.Context, roomID string, handler Handler) (Unsubscribe, error) {
	if roomID == "" {
		return nil, ErrEmptyRoomID
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	loopCtx, cancel := context.WithCancel(ctx)
	sub := &pollSubscription{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return nil, ErrChannelClosed
	}
	p.subs[sub] = struct{}{}
	p.mu.Unlock()

	go p.loop(loopCtx, roomID, handler, sub.done)

	return func() {
		p.mu.Lock()
		delete(p.subs, sub)
		p.mu.Unlock()
		sub.stop()
	}, nil
}

func (p *PollChannel) loop(ctx context.Context, roomID string, handler Handler, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	seen := newRecentIDs(seenWindow)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		msg, err := p.fetcher.LatestMessage(ctx, roomID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			observability.IncPollFetch("error")
			log.Printf("poll fetch failed room_id=%s: %v", roomID, err)
			continue
		}
		if msg == nil {
			observability.IncPollFetch("empty")
			continue
		}
		if !seen.add(msg.ID) {
			observability.IncPollFetch("unchanged")
			continue
		}
		observability.IncPollFetch("delivered")

		if ctx.Err() != nil {
			return
		}
		handler(models.MessageEvent{
			Type:       models.EventMessageCreated,
			RoomID:     roomID,
			Message:    msg,
			MessageID:  msg.ID,
			OccurredAt: time.Now().UTC(),
		})
	}
}

// recentIDs is a fixed-size ring of ids with set lookup. Not safe for
// concurrent use; each poll loop owns one.
type recentIDs struct {
	ring []string
	next int
	set  map[string]struct{}
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{ring: make([]string, 0, size), set: make(map[string]struct{}, size)}
}

// add records id and reports whether it was new. The oldest id is evicted
// once the ring is full.
func (r *recentIDs) add(id string) bool {
	if _, ok := r.set[id]; ok {
		return false
	}
	if len(r.ring) < cap(r.ring) {
		r.ring = append(r.ring, id)
	} else {
		delete(r.set, r.ring[r.next])
		r.ring[r.next] = id
		r.next = (r.next + 1) % len(r.ring)
	}
	r.set[id] = struct{}{}
	return true
}

func (r *recentIDs) len() int { return len(r.set) }

// Close stops every polling loop and waits for them to exit.
func (p *PollChannel) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	subs := p.subs
	p.subs = make(map[*pollSubscription]struct{})
	p.mu.Unlock()

	for sub := range subs {
		sub.stop()
	}
	return nil
}
