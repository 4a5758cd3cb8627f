package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"

	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/realtime"
	"chat-sync/internal/repositories"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Operations is the chat surface used by the HTTP and websocket layers.
type Operations interface {
	ResolveDirectRoom(ctx context.Context, a, b string) (models.Room, error)
	CreateRoom(ctx context.Context, req NewRoom) (models.Room, error)
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	GetUserRooms(ctx context.Context, userID string) ([]models.Room, error)
	DeactivateRoom(ctx context.Context, roomID string) error
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)

	SendMessage(ctx context.Context, req SendRequest) (SendResult, error)
	GetRoomMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	EditMessage(ctx context.Context, messageID, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) (models.Message, error)
	MarkMessageAsRead(ctx context.Context, messageID, userID string) (models.Message, error)
	MarkRoomAsRead(ctx context.Context, roomID, userID string) (int, error)
	SearchMessages(ctx context.Context, roomID, query string, limit int) ([]models.Message, error)
	GetUnreadCount(ctx context.Context, roomID, userID string) (int, error)
	LatestMessage(ctx context.Context, roomID string) (*models.Message, error)
}

// MentionHandler is notified after every stored message that was not
// itself produced by the AI assistant.
type MentionHandler interface {
	HandleMessage(ctx context.Context, msg models.Message)
}

// SendRequest is the input of SendMessage.
type SendRequest struct {
	RoomID      string
	SenderID    string
	Content     string
	Type        models.MessageType
	ReplyTo     *string
	Attachments models.Attachments
	Mentions    []string
	AIGenerated bool
	AIModel     *string
}

// SendResult carries the stored message and any follow-up steps that failed
// after it was stored.
type SendResult struct {
	Message  models.Message `json:"message"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Service implements Operations on top of the room and message stores.
type Service struct {
	*Directory
	messages repositories.MessageRepository
	ledger   *Ledger
	events   realtime.Publisher
	mentions MentionHandler
	async    func(func())
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where message events are published.
func WithPublisher(p realtime.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation for rooms and messages.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithAsync overrides how mention handling is scheduled. The default runs it
// on a new goroutine.
func WithAsync(run func(func())) Option {
	return func(s *Service) { s.async = run }
}

// NewService wires a Service.
func NewService(rooms repositories.RoomRepository, messages repositories.MessageRepository, opts ...Option) *Service {
	s := &Service{
		Directory: NewDirectory(rooms),
		messages:  messages,
		ledger:    NewLedger(rooms),
		async:     func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMentionHandler installs the handler run after each human-authored send.
func (s *Service) SetMentionHandler(h MentionHandler) {
	s.mentions = h
}

// SendMessage stores a message, records room activity and publishes a
// message.created event. Only the insert is fatal; later steps surface as
// warnings.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (SendResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return SendResult{}, validationErr("message content is empty")
	}
	if req.RoomID == "" || req.SenderID == "" {
		return SendResult{}, validationErr("room and sender are required")
	}
	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageText
	}
	if !msgType.Valid() {
		return SendResult{}, validationErr("unknown message type %q", msgType)
	}

	now := s.now()
	msg, err := s.messages.CreateMessage(ctx, models.Message{
		ID:          s.newID(),
		RoomID:      req.RoomID,
		SenderID:    req.SenderID,
		Content:     content,
		Type:        msgType,
		ReplyTo:     req.ReplyTo,
		Attachments: req.Attachments,
		Mentions:    pq.StringArray(mergeMentions(req.Mentions, content)),
		AIGenerated: req.AIGenerated,
		AIModel:     req.AIModel,
		ReadBy:      pq.StringArray{req.SenderID},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("store message: %w", err)
	}
	observability.IncMessageSent(string(msg.Type))

	result := SendResult{Message: msg}
	if err := s.ledger.Touch(ctx, msg.RoomID, msg.ID, msg.CreatedAt); err != nil {
		log.Printf("room activity update failed message_id=%s: %v", msg.ID, err)
		result.Warnings = append(result.Warnings, "room activity not updated")
	}

	if err := s.publish(ctx, models.EventMessageCreated, &msg, ""); err != nil {
		result.Warnings = append(result.Warnings, "realtime event not published")
	}

	if s.mentions != nil && !msg.AIGenerated {
		handler, stored := s.mentions, msg
		detached := context.WithoutCancel(ctx)
		s.async(func() { handler.HandleMessage(detached, stored) })
	}
	return result, nil
}

// GetRoomMessages returns one page of live messages in chronological order.
// Page 0 holds the newest messages. A store failure yields an empty page.
func (s *Service) GetRoomMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	msgs, err := s.messages.ListRecent(ctx, roomID, limit, offset)
	if err != nil {
		log.Printf("list messages failed room_id=%s: %v", roomID, err)
		observability.IncReadFallback("list_messages")
		return []models.Message{}, nil
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// GetMessage fetches one message, deleted or not.
func (s *Service) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	return s.messages.GetMessage(ctx, messageID)
}

// EditMessage replaces the content of a live message.
func (s *Service) EditMessage(ctx context.Context, messageID, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, validationErr("message content is empty")
	}
	msg, err := s.messages.UpdateContent(ctx, messageID, content, s.now())
	if err != nil {
		return models.Message{}, err
	}
	_ = s.publish(ctx, models.EventMessageUpdated, &msg, "")
	return msg, nil
}

// DeleteMessage tombstones a message. Deleting twice is not an error.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) (models.Message, error) {
	msg, err := s.messages.SoftDelete(ctx, messageID, s.now())
	if err != nil {
		return models.Message{}, err
	}
	_ = s.publish(ctx, models.EventMessageDeleted, &msg, "")
	return msg, nil
}

// MarkMessageAsRead adds userID to the message's readers.
func (s *Service) MarkMessageAsRead(ctx context.Context, messageID, userID string) (models.Message, error) {
	if userID == "" {
		return models.Message{}, validationErr("reader is required")
	}
	msg, err := s.messages.AddReader(ctx, messageID, userID)
	if err != nil {
		return models.Message{}, err
	}
	_ = s.publish(ctx, models.EventMessageRead, &msg, userID)
	return msg, nil
}

// MarkRoomAsRead marks every unread message from others in the room as read
// by userID and returns how many changed.
func (s *Service) MarkRoomAsRead(ctx context.Context, roomID, userID string) (int, error) {
	if userID == "" {
		return 0, validationErr("reader is required")
	}
	updated, err := s.messages.AddReaderToRoom(ctx, roomID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark room read: %w", err)
	}
	if updated > 0 {
		event := models.MessageEvent{
			Type:       models.EventMessageRead,
			RoomID:     roomID,
			UserID:     userID,
			OccurredAt: s.now(),
		}
		if s.events != nil {
			if err := s.events.Publish(ctx, event); err != nil {
				log.Printf("publish room read failed room_id=%s: %v", roomID, err)
			}
		}
	}
	return updated, nil
}

// SearchMessages matches content case-insensitively, newest first.
func (s *Service) SearchMessages(ctx context.Context, roomID, query string, limit int) ([]models.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationErr("search query is empty")
	}
	msgs, err := s.messages.Search(ctx, roomID, query, clampLimit(limit))
	if err != nil {
		log.Printf("search failed room_id=%s: %v", roomID, err)
		observability.IncReadFallback("search")
		return []models.Message{}, nil
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// GetUnreadCount counts live messages from others that userID has not read.
// A store failure counts as zero.
func (s *Service) GetUnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	count, err := s.messages.CountUnread(ctx, roomID, userID)
	if err != nil {
		log.Printf("unread count failed room_id=%s user_id=%s: %v", roomID, userID, err)
		observability.IncReadFallback("unread_count")
		return 0, nil
	}
	return count, nil
}

// LatestMessage returns the newest live message, or nil for an empty room.
func (s *Service) LatestMessage(ctx context.Context, roomID string) (*models.Message, error) {
	msg, err := s.messages.Latest(ctx, roomID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Service) publish(ctx context.Context, eventType models.EventType, msg *models.Message, userID string) error {
	if s.events == nil {
		return nil
	}
	err := s.events.Publish(ctx, models.MessageEvent{
		Type:       eventType,
		RoomID:     msg.RoomID,
		Message:    msg,
		MessageID:  msg.ID,
		UserID:     userID,
		OccurredAt: s.now(),
	})
	if err != nil {
		log.Printf("publish %s failed message_id=%s: %v", eventType, msg.ID, err)
	}
	return err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

var (
	_ Operations             = (*Service)(nil)
	_ realtime.LatestFetcher = (*Service)(nil)
)
