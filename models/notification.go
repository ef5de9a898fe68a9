package models

import "time"

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationToken   NotificationType = "token"
	NotificationReview  NotificationType = "review"
	NotificationMention NotificationType = "mention"
)

var NotificationTypes = map[NotificationType]bool{
	NotificationLike:    true,
	NotificationComment: true,
	NotificationFollow:  true,
	NotificationToken:   true,
	NotificationReview:  true,
	NotificationMention: true,
}

type Notification struct {
	ID           int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64            `gorm:"index:idx_notifications_user_created,priority:1;not null" json:"user_id"`
	SourceUserID int64            `json:"source_user_id"`
	Type         NotificationType `gorm:"size:16;index" json:"type"`
	Message      string           `gorm:"type:text" json:"message"`
	EntityID     int64            `json:"entity_id,omitempty"`
	IsRead       bool             `gorm:"default:false" json:"is_read"`
	CreatedAt    time.Time        `gorm:"index:idx_notifications_user_created,priority:2" json:"created_at"`

	SourceUser *ProfileSummary `gorm:"-" json:"source_user,omitempty"`
}
