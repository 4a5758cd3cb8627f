package ai

import (
	"context"
	"log"
	"strings"

	"chat-sync/internal/chat"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// Sender posts the assistant's reply.
type Sender interface {
	SendMessage(ctx context.Context, req chat.SendRequest) (chat.SendResult, error)
}

// Outcome describes one trigger evaluation.
type Outcome struct {
	Triggered bool
	Reply     *models.Message
	Err       error
}

// Trigger replies as the assistant when a message mentions the reserved token.
type Trigger struct {
	completer Completer
	sender    Sender
	token     string
}

// NewTrigger builds a Trigger listening for token (for example "@ai").
func NewTrigger(completer Completer, sender Sender, token string) *Trigger {
	return &Trigger{completer: completer, sender: sender, token: token}
}

// Mentioned reports whether mentions contain token, ignoring case and the
// leading @.
func Mentioned(mentions []string, token string) bool {
	want := strings.TrimPrefix(strings.ToLower(token), "@")
	if want == "" {
		return false
	}
	for _, m := range mentions {
		if strings.TrimPrefix(strings.ToLower(strings.TrimSpace(m)), "@") == want {
			return true
		}
	}
	return false
}

// MaybeTrigger asks the completer for a reply to content and posts it into
// roomID as a reply to replyTo. Nothing is posted when the completion fails.
func (t *Trigger) MaybeTrigger(ctx context.Context, roomID, content string, mentions []string, replyTo string) Outcome {
	if !Mentioned(mentions, t.token) {
		return Outcome{}
	}

	prompt := stripToken(content, t.token)
	if prompt == "" {
		prompt = strings.TrimSpace(content)
	}

	completion, err := t.completer.Complete(ctx, prompt)
	if err != nil {
		observability.IncAITrigger("completion_failed")
		log.Printf("ai completion failed room_id=%s reply_to=%s: %v", roomID, replyTo, err)
		return Outcome{Triggered: true, Err: err}
	}

	model := t.completer.Model()
	req := chat.SendRequest{
		RoomID:      roomID,
		SenderID:    models.AIAssistantID,
		Content:     completion,
		Type:        models.MessageAI,
		AIGenerated: true,
		AIModel:     &model,
	}
	if replyTo != "" {
		req.ReplyTo = &replyTo
	}
	res, err := t.sender.SendMessage(ctx, req)
	if err != nil {
		observability.IncAITrigger("send_failed")
		log.Printf("ai reply not stored room_id=%s reply_to=%s: %v", roomID, replyTo, err)
		return Outcome{Triggered: true, Err: err}
	}

	observability.IncAITrigger("replied")
	log.Printf("ai replied room_id=%s message_id=%s reply_to=%s", roomID, res.Message.ID, replyTo)
	return Outcome{Triggered: true, Reply: &res.Message}
}

// HandleMessage implements chat.MentionHandler.
func (t *Trigger) HandleMessage(ctx context.Context, msg models.Message) {
	if msg.AIGenerated || msg.SenderID == models.AIAssistantID {
		return
	}
	t.MaybeTrigger(ctx, msg.RoomID, msg.Content, msg.Mentions, msg.ID)
}

func stripToken(content, token string) string {
	fields := strings.Fields(content)
	kept := fields[:0]
	for _, f := range fields {
		if strings.EqualFold(strings.TrimRight(f, ".,:;!?"), token) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

var _ chat.MentionHandler = (*Trigger)(nil)
