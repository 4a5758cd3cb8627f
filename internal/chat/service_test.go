package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
)

type eventLog struct {
	mu     sync.Mutex
	events []models.MessageEvent
	err    error
}

func (l *eventLog) Publish(ctx context.Context, event models.MessageEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return l.err
}

func (l *eventLog) types() []models.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.EventType
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

type mentionLog struct {
	mu   sync.Mutex
	seen []models.Message
}

func (m *mentionLog) HandleMessage(ctx context.Context, msg models.Message) {
	m.mu.Lock()
	m.seen = append(m.seen, msg)
	m.mu.Unlock()
}

// tickingClock advances one millisecond per call so creation order is total.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

type fixture struct {
	store  *repositories.MemoryStore
	svc    *Service
	events *eventLog
	room   models.Room
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	events := &eventLog{}
	opts = append([]Option{WithPublisher(events), WithClock(tickingClock()), WithAsync(func(fn func()) { fn() })}, opts...)
	svc := NewService(store, store, opts...)
	room, err := svc.ResolveDirectRoom(context.Background(), "alice", "bob")
	require.NoError(t, err)
	return &fixture{store: store, svc: svc, events: events, room: room}
}

func (f *fixture) send(t *testing.T, sender, content string) models.Message {
	t.Helper()
	res, err := f.svc.SendMessage(context.Background(), SendRequest{RoomID: f.room.ID, SenderID: sender, Content: content})
	require.NoError(t, err)
	return res.Message
}

func TestDirectRoomHelloScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	again, err := f.svc.ResolveDirectRoom(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, f.room.ID, again.ID)

	msg := f.send(t, "alice", "hello")
	assert.Equal(t, models.MessageText, msg.Type)
	assert.Equal(t, []string{"alice"}, []string(msg.ReadBy))
	assert.False(t, msg.Edited)
	assert.False(t, msg.Deleted)

	msgs, err := f.svc.GetRoomMessages(ctx, f.room.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)

	unread, err := f.svc.GetUnreadCount(ctx, f.room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	room, err := f.svc.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	require.NotNil(t, room.LastMessageID)
	assert.Equal(t, msg.ID, *room.LastMessageID)
	assert.EqualValues(t, 1, room.MessageCount)

	assert.Equal(t, []models.EventType{models.EventMessageCreated}, f.events.types())
}

func TestSendRejectsBlankContent(t *testing.T) {
	f := newFixture(t)
	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.SendMessage(context.Background(), SendRequest{RoomID: f.room.ID, SenderID: "alice", Content: content})
		assert.ErrorIs(t, err, ErrValidation)
	}

	msgs, err := f.svc.GetRoomMessages(context.Background(), f.room.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, f.events.types())
}

func TestSendRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendMessage(context.Background(), SendRequest{RoomID: f.room.ID, SenderID: "alice", Content: "x", Type: "video"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSendMergesParsedMentions(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.SendMessage(context.Background(), SendRequest{
		RoomID:   f.room.ID,
		SenderID: "alice",
		Content:  "hey @bob, ask @ai.",
		Mentions: []string{"bob-id", "@bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob-id", "@bob", "@ai"}, []string(res.Message.Mentions))
}

func TestSendReportsLedgerFailureAsWarning(t *testing.T) {
	store := repositories.NewMemoryStore()
	svc := NewService(failingRooms{store}, store)

	res, err := svc.SendMessage(context.Background(), SendRequest{RoomID: "r1", SenderID: "alice", Content: "hi"})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "room activity not updated")

	stored, err := store.GetMessage(context.Background(), res.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", stored.Content)
}

func TestSendReportsPublishFailureAsWarning(t *testing.T) {
	f := newFixture(t)
	f.events.err = assert.AnError

	res, err := f.svc.SendMessage(context.Background(), SendRequest{RoomID: f.room.ID, SenderID: "alice", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"realtime event not published"}, res.Warnings)
}

func TestSendHandsHumanMessagesToMentionHandler(t *testing.T) {
	f := newFixture(t)
	handler := &mentionLog{}
	f.svc.SetMentionHandler(handler)

	f.send(t, "alice", "@ai what is a monad")
	_, err := f.svc.SendMessage(context.Background(), SendRequest{
		RoomID: f.room.ID, SenderID: models.AIAssistantID, Content: "@ai a burrito", Type: models.MessageAI, AIGenerated: true,
	})
	require.NoError(t, err)

	require.Len(t, handler.seen, 1)
	assert.Equal(t, "alice", handler.seen[0].SenderID)
}

func TestGetRoomMessagesIsChronological(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := repositories.NewMemoryStore()
		svc := NewService(store, store, WithClock(tickingClock()))
		ctx := context.Background()
		room, err := svc.ResolveDirectRoom(ctx, "a", "b")
		if err != nil {
			rt.Fatalf("resolve: %v", err)
		}

		n := rapid.IntRange(0, 30).Draw(rt, "n")
		for i := 0; i < n; i++ {
			sender := rapid.SampledFrom([]string{"a", "b"}).Draw(rt, "sender")
			if _, err := svc.SendMessage(ctx, SendRequest{RoomID: room.ID, SenderID: sender, Content: fmt.Sprintf("m%d", i)}); err != nil {
				rt.Fatalf("send: %v", err)
			}
		}
		limit := rapid.IntRange(1, 40).Draw(rt, "limit")
		offset := rapid.IntRange(0, 35).Draw(rt, "offset")

		msgs, err := svc.GetRoomMessages(ctx, room.ID, limit, offset)
		if err != nil {
			rt.Fatalf("list: %v", err)
		}

		// The page covers the newest-first window [offset, offset+limit).
		wantLen := n - offset
		if wantLen < 0 {
			wantLen = 0
		}
		if wantLen > limit {
			wantLen = limit
		}
		if len(msgs) != wantLen {
			rt.Fatalf("got %d messages, want %d", len(msgs), wantLen)
		}
		for i := 1; i < len(msgs); i++ {
			if !msgs[i-1].CreatedAt.Before(msgs[i].CreatedAt) {
				rt.Fatalf("not chronological at %d", i)
			}
		}
		if len(msgs) > 0 {
			newest := n - 1 - offset
			if msgs[len(msgs)-1].Content != fmt.Sprintf("m%d", newest) {
				rt.Fatalf("last message %q, want m%d", msgs[len(msgs)-1].Content, newest)
			}
		}
	})
}

func TestGetRoomMessagesClampsLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < MaxPageSize+5; i++ {
		f.send(t, "alice", fmt.Sprintf("m%d", i))
	}

	msgs, err := f.svc.GetRoomMessages(context.Background(), f.room.ID, 0, -3)
	require.NoError(t, err)
	assert.Len(t, msgs, DefaultPageSize)

	msgs, err = f.svc.GetRoomMessages(context.Background(), f.room.ID, 1000, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, MaxPageSize)
}

type failingMessages struct {
	*repositories.MemoryStore
}

func (failingMessages) ListRecent(context.Context, string, int, int) ([]models.Message, error) {
	return nil, assert.AnError
}

func (failingMessages) Search(context.Context, string, string, int) ([]models.Message, error) {
	return nil, assert.AnError
}

func (failingMessages) CountUnread(context.Context, string, string) (int, error) {
	return 0, assert.AnError
}

func TestReadPathsDegradeOnStoreFailure(t *testing.T) {
	store := repositories.NewMemoryStore()
	svc := NewService(store, failingMessages{store})
	ctx := context.Background()

	msgs, err := svc.GetRoomMessages(ctx, "r1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	found, err := svc.SearchMessages(ctx, "r1", "x", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	count, err := svc.GetUnreadCount(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteIsIdempotentAndHidesMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.send(t, "alice", "oops")

	first, err := f.svc.DeleteMessage(ctx, msg.ID)
	require.NoError(t, err)
	second, err := f.svc.DeleteMessage(ctx, msg.ID)
	require.NoError(t, err)

	assert.True(t, second.Deleted)
	assert.Equal(t, models.DeletedPlaceholder, second.Content)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	msgs, err := f.svc.GetRoomMessages(ctx, f.room.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	latest, err := f.svc.LatestMessage(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = f.svc.DeleteMessage(ctx, "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.send(t, "alice", "helo")

	edited, err := f.svc.EditMessage(ctx, msg.ID, " hello ")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Content)
	assert.True(t, edited.Edited)
	require.NotNil(t, edited.EditedAt)

	_, err = f.svc.EditMessage(ctx, msg.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.DeleteMessage(ctx, msg.ID)
	require.NoError(t, err)
	_, err = f.svc.EditMessage(ctx, msg.ID, "resurrect")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	assert.Equal(t, []models.EventType{models.EventMessageCreated, models.EventMessageUpdated, models.EventMessageDeleted}, f.events.types())
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msg := f.send(t, "alice", "hi")

	_, err := f.svc.MarkMessageAsRead(ctx, msg.ID, "bob")
	require.NoError(t, err)
	again, err := f.svc.MarkMessageAsRead(ctx, msg.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, []string(again.ReadBy))

	_, err = f.svc.MarkMessageAsRead(ctx, "missing", "bob")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestUnreadCountingAndRoomRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.send(t, "alice", "one")
	f.send(t, "alice", "two")
	deleted := f.send(t, "alice", "three")
	f.send(t, "bob", "mine")
	_, err := f.svc.DeleteMessage(ctx, deleted.ID)
	require.NoError(t, err)

	count, err := f.svc.GetUnreadCount(ctx, f.room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = f.svc.MarkMessageAsRead(ctx, first.ID, "bob")
	require.NoError(t, err)
	count, err = f.svc.GetUnreadCount(ctx, f.room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	updated, err := f.svc.MarkRoomAsRead(ctx, f.room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	count, err = f.svc.GetUnreadCount(ctx, f.room.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)

	updated, err = f.svc.MarkRoomAsRead(ctx, f.room.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestSearchMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.send(t, "alice", "Quantum homework")
	f.send(t, "bob", "lunch?")
	f.send(t, "bob", "the QUANTUM part is hard")

	found, err := f.svc.SearchMessages(ctx, f.room.ID, "quantum", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "the QUANTUM part is hard", found[0].Content)

	_, err = f.svc.SearchMessages(ctx, f.room.ID, " ", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLatestMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	latest, err := f.svc.LatestMessage(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	f.send(t, "alice", "first")
	second := f.send(t, "bob", "second")
	latest, err = f.svc.LatestMessage(ctx, f.room.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}
