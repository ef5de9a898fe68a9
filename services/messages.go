package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creaverse/db"
	"creaverse/models"

	"gorm.io/gorm"
)

const (
	DefaultThreadLimit = 50
	MaxThreadLimit     = 200
	MaxMessageLength   = 4000
)

type SendInput struct {
	ConversationID int64
	SenderID       int64
	Content        string
	// ClientID makes retries idempotent: a second send with the same id
	// returns the stored message.
	ClientID string
}

type MessageService struct {
	bus Publisher
}

func NewMessageService(bus Publisher) *MessageService {
	return &MessageService{bus: bus}
}

func (s *MessageService) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message is longer than %d bytes", ErrInvalidInput, MaxMessageLength)
	}

	conv, err := loadForViewer(ctx, in.SenderID, in.ConversationID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Content:        content,
	}
	if in.ClientID != "" {
		clientID := in.ClientID
		msg.ClientID = &clientID

		existing, err := messageByClientID(ctx, clientID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return checkRetry(existing, in)
		}
	}

	err = db.GetWriteDB(ctx).Create(msg).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) && msg.ClientID != nil {
		existing, lookupErr := messageByClientID(ctx, *msg.ClientID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return checkRetry(existing, in)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if s.bus != nil {
		recipient := conv.Other(in.SenderID)
		_ = s.bus.Publish(ctx, NewEvent(EventMessage, recipient, in.SenderID, msg.ID, "", msg))
	}
	return msg, nil
}

// checkRetry accepts a stored message only when the retry comes from the same
// sender in the same conversation.
func checkRetry(existing *models.Message, in SendInput) (*models.Message, error) {
	if existing.SenderID != in.SenderID || existing.ConversationID != in.ConversationID {
		return nil, fmt.Errorf("client id %q: %w", in.ClientID, ErrAlreadyExists)
	}
	return existing, nil
}

func messageByClientID(ctx context.Context, clientID string) (*models.Message, error) {
	var msg models.Message
	err := db.GetWriteDB(ctx).Where("client_id = ?", clientID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListThread returns the latest limit messages in ascending creation order.
func (s *MessageService) ListThread(ctx context.Context, viewerID, conversationID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultThreadLimit
	}
	if limit > MaxThreadLimit {
		limit = MaxThreadLimit
	}
	if _, err := loadForViewer(ctx, viewerID, conversationID); err != nil {
		return nil, err
	}

	messages := []models.Message{}
	err := db.GetReadOnlyDB(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead flags every unread message from the other participant as read and
// returns how many rows changed.
func (s *MessageService) MarkRead(ctx context.Context, viewerID, conversationID int64) (int64, error) {
	conv, err := loadForViewer(ctx, viewerID, conversationID)
	if err != nil {
		return 0, err
	}

	res := db.GetWriteDB(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, viewerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark messages read: %w", res.Error)
	}

	if res.RowsAffected > 0 && s.bus != nil {
		_ = s.bus.Publish(ctx, NewEvent(EventMessagesRead, conv.Other(viewerID), viewerID, conversationID, "",
			map[string]int64{"conversation_id": conversationID, "count": res.RowsAffected}))
	}
	return res.RowsAffected, nil
}

// UnreadTotal counts unread incoming messages across all conversations.
func (s *MessageService) UnreadTotal(ctx context.Context, viewerID int64) (int64, error) {
	var count int64
	err := db.GetReadOnlyDB(ctx).Model(&models.Message{}).
		Joins("JOIN conversations c ON c.id = messages.conversation_id").
		Where("(c.participant_a = ? OR c.participant_b = ?) AND messages.sender_id <> ? AND messages.is_read = ?",
			viewerID, viewerID, viewerID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
