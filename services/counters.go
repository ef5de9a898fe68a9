package services

import (
	"context"
	"fmt"
)

// Counters are the badge numbers shown next to the inbox and notification
// bell. They are computed by query on every call.
type Counters struct {
	UnreadMessages      int64 `json:"unread_messages"`
	UnreadNotifications int64 `json:"unread_notifications"`
}

type CounterService struct {
	messages      *MessageService
	notifications *NotificationService
}

func NewCounterService(messages *MessageService, notifications *NotificationService) *CounterService {
	return &CounterService{messages: messages, notifications: notifications}
}

func (s *CounterService) Get(ctx context.Context, userID int64) (*Counters, error) {
	messages, err := s.messages.UnreadTotal(ctx, userID)
	if err != nil {
		return nil, err
	}
	notifications, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	return &Counters{UnreadMessages: messages, UnreadNotifications: notifications}, nil
}
