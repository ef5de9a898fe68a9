package services

import (
	"context"
	"fmt"

	"creaverse/db"
	"creaverse/models"
)

type NotificationQuery struct {
	Type       models.NotificationType `form:"type"`
	UnreadOnly bool                    `form:"unread"`
	Limit      int                     `form:"limit"`
}

type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

func (s *NotificationService) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if !models.NotificationTypes[n.Type] {
		return nil, fmt.Errorf("%w: notification type %q", ErrInvalidInput, n.Type)
	}
	if err := db.GetWriteDB(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if n.SourceUserID != 0 {
		summaries, err := loadSummaries(ctx, []int64{n.SourceUserID})
		if err == nil {
			if src, ok := summaries[n.SourceUserID]; ok {
				n.SourceUser = &src
			}
		}
	}
	return n, nil
}

// List returns the newest notifications of the user, optionally filtered by
// type and read state.
func (s *NotificationService) List(ctx context.Context, userID int64, q NotificationQuery) ([]models.Notification, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 50
	}
	if q.Type != "" && !models.NotificationTypes[q.Type] {
		return nil, fmt.Errorf("%w: notification type %q", ErrInvalidInput, q.Type)
	}

	query := db.GetReadOnlyDB(ctx).Where("user_id = ?", userID)
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	if q.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	notifications := []models.Notification{}
	if err := query.Order("created_at DESC, id DESC").Limit(q.Limit).Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	sourceIDs := make([]int64, 0, len(notifications))
	for _, n := range notifications {
		if n.SourceUserID != 0 {
			sourceIDs = append(sourceIDs, n.SourceUserID)
		}
	}
	summaries, err := loadSummaries(ctx, sourceIDs)
	if err != nil {
		return nil, err
	}
	for i := range notifications {
		if src, ok := summaries[notifications[i].SourceUserID]; ok {
			notifications[i].SourceUser = &src
		}
	}
	return notifications, nil
}

// MarkRead flags the given notifications as read; no ids marks every
// notification of the user.
func (s *NotificationService) MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	query := db.GetWriteDB(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	res := query.Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := db.GetReadOnlyDB(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
