package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/patrickmn/go-cache"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/repositories"
)

// NewRoom describes an explicitly created room.
type NewRoom struct {
	Type         models.RoomType `json:"type"`
	Name         string          `json:"name"`
	CreatorID    string          `json:"-"`
	Participants []string        `json:"participants"`
	PodID        *string         `json:"pod_id,omitempty"`
}

// Directory resolves, creates and lists rooms.
type Directory struct {
	rooms repositories.RoomRepository
	pairs *cache.Cache
	now   func() time.Time
	newID func() string
}

// NewDirectory constructs a Directory. Direct rooms are never hard-deleted,
// so pair lookups are cached without expiry.
func NewDirectory(rooms repositories.RoomRepository) *Directory {
	return &Directory{
		rooms: rooms,
		pairs: cache.New(cache.NoExpiration, 0),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// CanonicalPair orders two distinct user ids.
func CanonicalPair(a, b string) ([2]string, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return [2]string{}, validationErr("both participants are required")
	}
	if a == b {
		return [2]string{}, validationErr("a direct room needs two distinct participants")
	}
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}, nil
}

func pairKey(pair [2]string) string {
	return pair[0] + "\x00" + pair[1]
}

// ResolveDirectRoom returns the direct room of a and b, creating it on first
// use. A deactivated pair room is reactivated, since the pair can never get
// a second one.
func (d *Directory) ResolveDirectRoom(ctx context.Context, a, b string) (models.Room, error) {
	pair, err := CanonicalPair(a, b)
	if err != nil {
		return models.Room{}, err
	}
	key := pairKey(pair)

	if id, ok := d.pairs.Get(key); ok {
		room, err := d.rooms.GetRoom(ctx, id.(string))
		if err == nil {
			return d.ensureActive(ctx, room)
		}
		d.pairs.Delete(key)
		if !errors.Is(err, repositories.ErrRoomNotFound) {
			return models.Room{}, fmt.Errorf("load direct room: %w", err)
		}
	}

	room, err := d.rooms.FindDirectRoom(ctx, pair)
	switch {
	case err == nil:
		d.pairs.Set(key, room.ID, cache.NoExpiration)
		return d.ensureActive(ctx, room)
	case !errors.Is(err, repositories.ErrRoomNotFound):
		return models.Room{}, fmt.Errorf("find direct room: %w", err)
	}

	room, err = d.rooms.CreateRoom(ctx, models.Room{
		ID:           d.newID(),
		Type:         models.RoomDirect,
		Participants: pq.StringArray{pair[0], pair[1]},
		CreatedBy:    a,
		Active:       true,
		CreatedAt:    d.now(),
	})
	if errors.Is(err, repositories.ErrDuplicateRoom) {
		// Lost the race against a concurrent create for the same pair.
		room, err = d.rooms.FindDirectRoom(ctx, pair)
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("create direct room: %w", err)
	}
	log.Printf("direct room resolved room_id=%s", room.ID)
	d.pairs.Set(key, room.ID, cache.NoExpiration)
	return d.ensureActive(ctx, room)
}

func (d *Directory) ensureActive(ctx context.Context, room models.Room) (models.Room, error) {
	if room.Active {
		return room, nil
	}
	reactivated, err := d.rooms.Reactivate(ctx, room.ID)
	if err != nil {
		return models.Room{}, fmt.Errorf("reactivate direct room: %w", err)
	}
	log.Printf("direct room reactivated room_id=%s", room.ID)
	return reactivated, nil
}

// CreateRoom creates a group, pod or AI room. A direct request is routed to
// ResolveDirectRoom.
func (d *Directory) CreateRoom(ctx context.Context, req NewRoom) (models.Room, error) {
	creator := strings.TrimSpace(req.CreatorID)
	if creator == "" {
		return models.Room{}, validationErr("creator is required")
	}
	if !req.Type.Valid() {
		return models.Room{}, validationErr("unknown room type %q", req.Type)
	}

	participants := uniqueParticipants(creator, req.Participants)
	switch req.Type {
	case models.RoomDirect:
		if len(participants) != 2 {
			return models.Room{}, validationErr("a direct room needs exactly one peer")
		}
		return d.ResolveDirectRoom(ctx, participants[0], participants[1])
	case models.RoomGroup:
		if strings.TrimSpace(req.Name) == "" {
			return models.Room{}, validationErr("group rooms need a name")
		}
	case models.RoomPod:
		if req.PodID == nil || strings.TrimSpace(*req.PodID) == "" {
			return models.Room{}, validationErr("pod rooms need a pod id")
		}
	case models.RoomAI:
		participants = uniqueParticipants(creator, append(participants, models.AIAssistantID))
	}

	room, err := d.rooms.CreateRoom(ctx, models.Room{
		ID:           d.newID(),
		Type:         req.Type,
		Name:         strings.TrimSpace(req.Name),
		Participants: participants,
		CreatedBy:    creator,
		PodID:        req.PodID,
		Active:       true,
		CreatedAt:    d.now(),
	})
	if err != nil {
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}
	log.Printf("room created room_id=%s type=%s participants=%d", room.ID, room.Type, len(room.Participants))
	return room, nil
}

// GetRoom fetches a room by id.
func (d *Directory) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	return d.rooms.GetRoom(ctx, roomID)
}

// GetUserRooms lists the user's active rooms, most recently active first.
// A store failure yields an empty list.
func (d *Directory) GetUserRooms(ctx context.Context, userID string) ([]models.Room, error) {
	rooms, err := d.rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		log.Printf("list rooms failed user_id=%s: %v", userID, err)
		observability.IncReadFallback("list_rooms")
		return []models.Room{}, nil
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return rooms, nil
}

// DeactivateRoom hides a room from listings. Its messages are kept.
func (d *Directory) DeactivateRoom(ctx context.Context, roomID string) error {
	if err := d.rooms.Deactivate(ctx, roomID); err != nil {
		return fmt.Errorf("deactivate room %s: %w", roomID, err)
	}
	log.Printf("room deactivated room_id=%s", roomID)
	return nil
}

// IsParticipant checks exact membership of userID in the room.
func (d *Directory) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	return d.rooms.IsParticipant(ctx, roomID, userID)
}

func uniqueParticipants(creator string, others []string) pq.StringArray {
	out := pq.StringArray{creator}
	seen := map[string]struct{}{creator: {}}
	for _, p := range others {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) > 1 {
		sort.Strings(out[1:])
	}
	return out
}
