package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	// ListRecent returns non-deleted messages newest first.
	ListRecent(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error)
	Latest(ctx context.Context, roomID string) (models.Message, error)
	UpdateContent(ctx context.Context, messageID string, content string, at time.Time) (models.Message, error)
	SoftDelete(ctx context.Context, messageID string, at time.Time) (models.Message, error)
	AddReader(ctx context.Context, messageID string, userID string) (models.Message, error)
	AddReaderToRoom(ctx context.Context, roomID string, userID string) (int, error)
	Search(ctx context.Context, roomID string, query string, limit int) ([]models.Message, error)
	CountUnread(ctx context.Context, roomID string, userID string) (int, error)
}

const messageColumns = `id, seq, room_id, sender_id, content, type, reply_to, attachments, mentions, ai_generated, ai_model, edited, edited_at, deleted, read_by, created_at, updated_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var created models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, room_id, sender_id, content, type, reply_to, attachments, mentions, ai_generated, ai_model, edited, deleted, read_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, FALSE, $11, $12, $13)
        RETURNING `+messageColumns,
		msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.Type, msg.ReplyTo, msg.Attachments, msg.Mentions,
		msg.AIGenerated, msg.AIModel, msg.ReadBy, msg.CreatedAt, msg.UpdatedAt).
		StructScan(&created)
	return created, err
}

// GetMessage retrieves a single message, deleted or not.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListRecent pages backward from the most recent message.
func (r *MessageRepo) ListRecent(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE room_id=$1 AND deleted = FALSE
        ORDER BY created_at DESC, seq DESC
        LIMIT $2 OFFSET $3`, roomID, limit, offset)
	return msgs, err
}

// Latest returns the most recent non-deleted message.
func (r *MessageRepo) Latest(ctx context.Context, roomID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages
        WHERE room_id=$1 AND deleted = FALSE
        ORDER BY created_at DESC, seq DESC
        LIMIT 1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateContent replaces the content of a live message and flags it edited.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID string, content string, at time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$2, edited=TRUE, edited_at=$3, updated_at=$3
        WHERE id=$1 AND deleted = FALSE
        RETURNING `+messageColumns, messageID, content, at).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete replaces content with the tombstone. Repeating it is harmless.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string, at time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages
        SET content=$2, deleted=TRUE, updated_at = CASE WHEN deleted THEN updated_at ELSE $3 END
        WHERE id=$1
        RETURNING `+messageColumns, messageID, models.DeletedPlaceholder, at).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// AddReader appends userID to read_by unless already present.
func (r *MessageRepo) AddReader(ctx context.Context, messageID string, userID string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages
        SET read_by = CASE WHEN $2 = ANY(read_by) THEN read_by ELSE array_append(read_by, $2) END
        WHERE id=$1
        RETURNING `+messageColumns, messageID, userID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// AddReaderToRoom marks every unread message from others as read by userID.
func (r *MessageRepo) AddReaderToRoom(ctx context.Context, roomID string, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read_by = array_append(read_by, $2)
        WHERE room_id=$1 AND deleted = FALSE AND sender_id <> $2 AND NOT ($2 = ANY(read_by))`, roomID, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// Search matches content case-insensitively, newest first.
func (r *MessageRepo) Search(ctx context.Context, roomID string, query string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE room_id=$1 AND deleted = FALSE AND content ILIKE $2 ESCAPE '\'
        ORDER BY created_at DESC, seq DESC
        LIMIT $3`, roomID, "%"+escapeLike(query)+"%", limit)
	return msgs, err
}

// CountUnread counts live messages from others that userID has not read.
func (r *MessageRepo) CountUnread(ctx context.Context, roomID string, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE room_id=$1 AND deleted = FALSE AND sender_id <> $2 AND NOT ($2 = ANY(read_by))`, roomID, userID)
	return count, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
