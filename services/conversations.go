package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"creaverse/db"
	"creaverse/models"

	"gorm.io/gorm"
)

type ConversationService struct {
	presence *PresenceService
}

func NewConversationService(presence *PresenceService) *ConversationService {
	return &ConversationService{presence: presence}
}

// FindOrCreate returns the conversation between the two users, creating it on
// first contact. The pair is stored ordered so both directions resolve to the
// same row.
func (s *ConversationService) FindOrCreate(ctx context.Context, viewerID, otherID int64) (*models.Conversation, bool, error) {
	if viewerID == 0 {
		return nil, false, ErrNotFound
	}
	if viewerID == otherID {
		return nil, false, ErrSelfConversation
	}

	var exists int64
	if err := db.GetReadOnlyDB(ctx).Model(&models.User{}).Where("id = ?", otherID).Count(&exists).Error; err != nil {
		return nil, false, fmt.Errorf("check counterpart: %w", err)
	}
	if exists == 0 {
		return nil, false, fmt.Errorf("user %d: %w", otherID, ErrNotFound)
	}

	a, b := orderedPair(viewerID, otherID)
	conv, err := findConversation(ctx, db.GetWriteDB(ctx), a, b)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	conv = &models.Conversation{ParticipantA: a, ParticipantB: b}
	err = db.GetWriteDB(ctx).Create(conv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// created concurrently by the other participant
		conv, err = findConversation(ctx, db.GetWriteDB(ctx), a, b)
		return conv, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return conv, true, nil
}

func findConversation(ctx context.Context, tx *gorm.DB, a, b int64) (*models.Conversation, error) {
	var conv models.Conversation
	err := tx.Where("participant_a = ? AND participant_b = ?", a, b).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &conv, nil
}

// loadForViewer returns the conversation if the viewer participates in it.
func loadForViewer(ctx context.Context, viewerID, conversationID int64) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.GetReadOnlyDB(ctx).First(&conv, conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !conv.HasParticipant(viewerID) {
		return nil, ErrNotFound
	}
	return &conv, nil
}

// GetDetail assembles the conversation row, counterpart profile, most recent
// message, unread count and counterpart presence. It has no side effects.
func (s *ConversationService) GetDetail(ctx context.Context, viewerID, conversationID int64) (*models.ConversationSummary, error) {
	if viewerID == 0 {
		return nil, ErrNotFound
	}
	conv, err := loadForViewer(ctx, viewerID, conversationID)
	if err != nil {
		return nil, err
	}
	summaries, err := s.assemble(ctx, viewerID, []models.Conversation{*conv})
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		// counterpart profile is gone
		return nil, ErrNotFound
	}
	return &summaries[0], nil
}

// List returns the viewer's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, viewerID int64) ([]models.ConversationSummary, error) {
	var convs []models.Conversation
	err := db.GetReadOnlyDB(ctx).
		Where("participant_a = ? OR participant_b = ?", viewerID, viewerID).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	summaries, err := s.assemble(ctx, viewerID, convs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		ai, aj := summaries[i].LastActivity(), summaries[j].LastActivity()
		if ai.Equal(aj) {
			return summaries[i].ID > summaries[j].ID
		}
		return ai.After(aj)
	})
	return summaries, nil
}

type unreadRow struct {
	ConversationID int64
	Unread         int64
}

// assemble builds summaries with one query per concern. Conversations whose
// counterpart profile no longer exists are skipped.
func (s *ConversationService) assemble(ctx context.Context, viewerID int64, convs []models.Conversation) ([]models.ConversationSummary, error) {
	result := make([]models.ConversationSummary, 0, len(convs))
	if len(convs) == 0 {
		return result, nil
	}

	convIDs := make([]int64, 0, len(convs))
	otherIDs := make([]int64, 0, len(convs))
	for _, c := range convs {
		convIDs = append(convIDs, c.ID)
		otherIDs = append(otherIDs, c.Other(viewerID))
	}

	profiles, err := loadSummaries(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	// last message per conversation
	var lastMessages []models.Message
	err = db.GetReadOnlyDB(ctx).
		Where("id IN (?)", db.GetReadOnlyDB(ctx).Model(&models.Message{}).
			Select("MAX(id)").
			Where("conversation_id IN ?", convIDs).
			Group("conversation_id")).
		Find(&lastMessages).Error
	if err != nil {
		return nil, fmt.Errorf("load last messages: %w", err)
	}
	lastByConv := make(map[int64]models.Message, len(lastMessages))
	for _, m := range lastMessages {
		lastByConv[m.ConversationID] = m
	}

	var unread []unreadRow
	err = db.GetReadOnlyDB(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", convIDs, viewerID, false).
		Group("conversation_id").
		Scan(&unread).Error
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	unreadByConv := make(map[int64]int64, len(unread))
	for _, u := range unread {
		unreadByConv[u.ConversationID] = u.Unread
	}

	presence := map[int64]models.Presence{}
	if s.presence != nil {
		if presence, err = s.presence.GetMany(ctx, otherIDs); err != nil {
			return nil, err
		}
	}

	for _, c := range convs {
		otherID := c.Other(viewerID)
		profile, ok := profiles[otherID]
		if !ok {
			continue
		}
		summary := models.ConversationSummary{
			ID:          c.ID,
			OtherUser:   profile,
			UnreadCount: unreadByConv[c.ID],
			CreatedAt:   c.CreatedAt,
		}
		if m, ok := lastByConv[c.ID]; ok {
			m := m
			summary.LastMessage = &m
		}
		if p, ok := presence[otherID]; ok {
			summary.IsOnline = p.IsOnline
			if !p.LastSeen.IsZero() {
				lastSeen := p.LastSeen
				summary.LastSeen = &lastSeen
			}
		}
		result = append(result, summary)
	}
	return result, nil
}

func orderedPair(x, y int64) (int64, int64) {
	if x < y {
		return x, y
	}
	return y, x
}
