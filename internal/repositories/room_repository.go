package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-sync/internal/models"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrDuplicateRoom = errors.New("direct room already exists")
)

// RoomRepository abstracts room persistence.
type RoomRepository interface {
	// FindDirectRoom looks up the direct room for an already sorted pair.
	FindDirectRoom(ctx context.Context, pair [2]string) (models.Room, error)
	CreateRoom(ctx context.Context, room models.Room) (models.Room, error)
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error)
	IsParticipant(ctx context.Context, roomID string, userID string) (bool, error)
	Deactivate(ctx context.Context, roomID string) error
	// Reactivate sets active again and returns the updated room.
	Reactivate(ctx context.Context, roomID string) (models.Room, error)
	// Touch records a new message on the room's activity fields.
	Touch(ctx context.Context, roomID string, lastMessageID string, at time.Time) error
}

const roomColumns = `id, type, name, participants, created_by, pod_id, last_message_id, last_activity_at, message_count, active, created_at`

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// FindDirectRoom matches the participant array exactly, so the pair must be sorted.
func (r *RoomRepo) FindDirectRoom(ctx context.Context, pair [2]string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE type = 'direct' AND participants = $1`, pq.StringArray{pair[0], pair[1]})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// CreateRoom inserts a room. A direct room colliding with an existing pair
// yields ErrDuplicateRoom so the caller can re-read the winner.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	var created models.Room
	err := r.db.QueryRowxContext(ctx, `INSERT INTO rooms (id, type, name, participants, created_by, pod_id, message_count, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT DO NOTHING
        RETURNING `+roomColumns,
		room.ID, room.Type, room.Name, room.Participants, room.CreatedBy, room.PodID, room.MessageCount, room.Active, room.CreatedAt).
		StructScan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrDuplicateRoom
	}
	return created, err
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListRoomsForUser returns active rooms containing the user, most recently active first.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM rooms
        WHERE active = TRUE AND $1 = ANY(participants)
        ORDER BY last_activity_at DESC NULLS LAST, created_at DESC, id ASC`, userID)
	return rooms, err
}

// IsParticipant checks exact membership.
func (r *RoomRepo) IsParticipant(ctx context.Context, roomID string, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM rooms WHERE id=$1 AND $2 = ANY(participants))`, roomID, userID)
	return exists, err
}

// Deactivate soft-deactivates a room.
func (r *RoomRepo) Deactivate(ctx context.Context, roomID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET active = FALSE WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrRoomNotFound)
}

// Reactivate flips a deactivated room back on.
func (r *RoomRepo) Reactivate(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `UPDATE rooms SET active = TRUE WHERE id=$1 RETURNING `+roomColumns, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// Touch is a separate write from the message insert. The counter uses an
// in-place increment; the other fields are last-writer-wins.
func (r *RoomRepo) Touch(ctx context.Context, roomID string, lastMessageID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET last_message_id=$2, last_activity_at=$3, message_count = message_count + 1 WHERE id=$1`, roomID, lastMessageID, at)
	if err != nil {
		return err
	}
	return requireRow(res, ErrRoomNotFound)
}

func requireRow(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
