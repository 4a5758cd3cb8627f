package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/models"
)

type stubFetcher struct {
	mu     sync.Mutex
	latest *models.Message
	err    error
	calls  atomic.Int32
}

func (f *stubFetcher) set(msg *models.Message, err error) {
	f.mu.Lock()
	f.latest, f.err = msg, err
	f.mu.Unlock()
}

func (f *stubFetcher) LatestMessage(ctx context.Context, roomID string) (*models.Message, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, nil
	}
	msg := *f.latest
	return &msg, nil
}

func TestPollChannelDeliversUnchangedLatestOnce(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set(&models.Message{ID: "m1", RoomID: "room-1"}, nil)

	ch := NewPollChannel(fetcher, 5*time.Millisecond)
	defer ch.Close()

	var rec recorder
	_, err := ch.Subscribe(context.Background(), "room-1", rec.handle)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fetcher.calls.Load() >= 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m1"}, rec.ids())

	fetcher.set(&models.Message{ID: "m2", RoomID: "room-1"}, nil)
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2"}, rec.ids())
}

func TestPollChannelSkipsErrorsAndEmptyRooms(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set(nil, assert.AnError)

	ch := NewPollChannel(fetcher, 5*time.Millisecond)
	defer ch.Close()

	var rec recorder
	_, err := ch.Subscribe(context.Background(), "room-1", rec.handle)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fetcher.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	fetcher.set(nil, nil)
	require.Eventually(t, func() bool { return fetcher.calls.Load() >= 6 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, rec.count())

	fetcher.set(&models.Message{ID: "m1"}, nil)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, models.EventMessageCreated, rec.events[0].Type)
}

func TestPollChannelStopsAfterUnsubscribe(t *testing.T) {
	fetcher := &stubFetcher{}
	ch := NewPollChannel(fetcher, 5*time.Millisecond)
	defer ch.Close()

	var delivered atomic.Int32
	unsubscribe, err := ch.Subscribe(context.Background(), "room-1", func(models.MessageEvent) {
		delivered.Add(1)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fetcher.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	fetcher.set(&models.Message{ID: "late"}, nil)
	calls := fetcher.calls.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, calls, fetcher.calls.Load())
	assert.Equal(t, int32(0), delivered.Load())
}

func TestPollChannelSubscriptionsAreIndependent(t *testing.T) {
	fetcher := &stubFetcher{}
	fetcher.set(&models.Message{ID: "m1"}, nil)
	ch := NewPollChannel(fetcher, 5*time.Millisecond)
	defer ch.Close()

	var first, second recorder
	_, err := ch.Subscribe(context.Background(), "room-1", first.handle)
	require.NoError(t, err)
	_, err = ch.Subscribe(context.Background(), "room-1", second.handle)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return first.count() == 1 && second.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPollChannelClosed(t *testing.T) {
	ch := NewPollChannel(&stubFetcher{}, time.Second)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	_, err := ch.Subscribe(context.Background(), "room-1", func(models.MessageEvent) {})
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestRecentIDsEvictsOldest(t *testing.T) {
	seen := newRecentIDs(3)

	for _, id := range []string{"m1", "m2", "m3"} {
		assert.True(t, seen.add(id))
	}
	assert.False(t, seen.add("m2"))
	assert.Equal(t, 3, seen.len())

	assert.True(t, seen.add("m4"))
	assert.Equal(t, 3, seen.len())
	assert.False(t, seen.add("m3"))
	assert.False(t, seen.add("m4"))

	// m1 fell out of the window.
	assert.True(t, seen.add("m1"))
	assert.Equal(t, 3, seen.len())
	assert.True(t, seen.add("m2"))
}

func TestRecentIDsStaysBounded(t *testing.T) {
	seen := newRecentIDs(seenWindow)
	for i := 0; i < seenWindow*10; i++ {
		seen.add(string(rune('a'+i%26)) + time.Duration(i).String())
	}
	assert.Equal(t, seenWindow, seen.len())
}
