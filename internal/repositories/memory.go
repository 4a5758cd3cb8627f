package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"chat-sync/internal/models"
)

// MemoryStore keeps rooms and messages in process memory. It implements
// both RoomRepository and MessageRepository and is meant for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]models.Room
	messages map[string]models.Message
	seq      int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]models.Room),
		messages: make(map[string]models.Message),
	}
}

func (s *MemoryStore) FindDirectRoom(ctx context.Context, pair [2]string) (models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.rooms {
		if room.Type == models.RoomDirect && len(room.Participants) == 2 &&
			room.Participants[0] == pair[0] && room.Participants[1] == pair[1] {
			return cloneRoom(room), nil
		}
	}
	return models.Room{}, ErrRoomNotFound
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.Type == models.RoomDirect {
		for _, existing := range s.rooms {
			if existing.Type == models.RoomDirect && equalParticipants(existing.Participants, room.Participants) {
				return models.Room{}, ErrDuplicateRoom
			}
		}
	}
	if _, ok := s.rooms[room.ID]; ok {
		return models.Room{}, ErrDuplicateRoom
	}
	room = cloneRoom(room)
	s.rooms[room.ID] = room
	return cloneRoom(room), nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (s *MemoryStore) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	s.mu.RLock()
	var rooms []models.Room
	for _, room := range s.rooms {
		if room.Active && room.HasParticipant(userID) {
			rooms = append(rooms, cloneRoom(room))
		}
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		switch {
		case a.LastActivityAt != nil && b.LastActivityAt != nil:
			if !a.LastActivityAt.Equal(*b.LastActivityAt) {
				return a.LastActivityAt.After(*b.LastActivityAt)
			}
		case a.LastActivityAt != nil:
			return true
		case b.LastActivityAt != nil:
			return false
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return rooms, nil
}

func (s *MemoryStore) IsParticipant(ctx context.Context, roomID string, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return ok && room.HasParticipant(userID), nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Active = false
	s.rooms[roomID] = room
	return nil
}

func (s *MemoryStore) Reactivate(ctx context.Context, roomID string) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	room.Active = true
	s.rooms[roomID] = room
	return cloneRoom(room), nil
}

func (s *MemoryStore) Touch(ctx context.Context, roomID string, lastMessageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	id := lastMessageID
	room.LastMessageID = &id
	room.LastActivityAt = &at
	room.MessageCount++
	s.rooms[roomID] = room
	return nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg = cloneMessage(msg)
	msg.Seq = s.seq
	s.messages[msg.ID] = msg
	return cloneMessage(msg), nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return cloneMessage(msg), nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	msgs := s.liveNewestFirst(roomID, func(models.Message) bool { return true })
	return page(msgs, limit, offset), nil
}

func (s *MemoryStore) Latest(ctx context.Context, roomID string) (models.Message, error) {
	msgs := s.liveNewestFirst(roomID, func(models.Message) bool { return true })
	if len(msgs) == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return msgs[0], nil
}

func (s *MemoryStore) UpdateContent(ctx context.Context, messageID string, content string, at time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok || msg.Deleted {
		return models.Message{}, ErrMessageNotFound
	}
	msg.Content = content
	msg.Edited = true
	msg.EditedAt = &at
	msg.UpdatedAt = at
	s.messages[messageID] = msg
	return cloneMessage(msg), nil
}

func (s *MemoryStore) SoftDelete(ctx context.Context, messageID string, at time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	if !msg.Deleted {
		msg.UpdatedAt = at
	}
	msg.Content = models.DeletedPlaceholder
	msg.Deleted = true
	s.messages[messageID] = msg
	return cloneMessage(msg), nil
}

func (s *MemoryStore) AddReader(ctx context.Context, messageID string, userID string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	if !msg.IsReadBy(userID) {
		msg.ReadBy = append(msg.ReadBy, userID)
		s.messages[messageID] = msg
	}
	return cloneMessage(msg), nil
}

func (s *MemoryStore) AddReaderToRoom(ctx context.Context, roomID string, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for id, msg := range s.messages {
		if msg.RoomID != roomID || msg.Deleted || msg.SenderID == userID || msg.IsReadBy(userID) {
			continue
		}
		msg.ReadBy = append(msg.ReadBy, userID)
		s.messages[id] = msg
		updated++
	}
	return updated, nil
}

func (s *MemoryStore) Search(ctx context.Context, roomID string, query string, limit int) ([]models.Message, error) {
	needle := strings.ToLower(query)
	msgs := s.liveNewestFirst(roomID, func(m models.Message) bool {
		return strings.Contains(strings.ToLower(m.Content), needle)
	})
	return page(msgs, limit, 0), nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, roomID string, userID string) (int, error) {
	msgs := s.liveNewestFirst(roomID, func(m models.Message) bool {
		return m.SenderID != userID && !m.IsReadBy(userID)
	})
	return len(msgs), nil
}

func (s *MemoryStore) liveNewestFirst(roomID string, keep func(models.Message) bool) []models.Message {
	s.mu.RLock()
	var msgs []models.Message
	for _, msg := range s.messages {
		if msg.RoomID == roomID && !msg.Deleted && keep(msg) {
			msgs = append(msgs, cloneMessage(msg))
		}
	}
	s.mu.RUnlock()

	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].Seq > msgs[j].Seq
	})
	return msgs
}

func page(msgs []models.Message, limit, offset int) []models.Message {
	if offset >= len(msgs) {
		return []models.Message{}
	}
	msgs = msgs[offset:]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs
}

func equalParticipants(a, b pq.StringArray) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cloneRoom(r models.Room) models.Room {
	r.Participants = append(pq.StringArray(nil), r.Participants...)
	return r
}

func cloneMessage(m models.Message) models.Message {
	m.ReadBy = append(pq.StringArray(nil), m.ReadBy...)
	m.Mentions = append(pq.StringArray(nil), m.Mentions...)
	m.Attachments = append(models.Attachments(nil), m.Attachments...)
	return m
}

var (
	_ RoomRepository    = (*MemoryStore)(nil)
	_ MessageRepository = (*MemoryStore)(nil)
	_ RoomRepository    = (*RoomRepo)(nil)
	_ MessageRepository = (*MessageRepo)(nil)
)
