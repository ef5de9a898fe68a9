package models

import (
	"time"
)

// Message представляет сообщение в беседе
type Message struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID int64     `gorm:"index:idx_messages_conversation_created,priority:1;not null" json:"conversation_id"`
	SenderID       int64     `gorm:"index;not null" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	ClientID       *string   `gorm:"size:64;uniqueIndex" json:"client_id,omitempty"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"created_at"`
	IsRead         bool      `gorm:"default:false;index" json:"is_read"`
}

// TableName возвращает имя таблицы для модели Message
func (Message) TableName() string {
	return "messages"
}
