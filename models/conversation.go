package models

import "time"

// Conversation is a two-party thread. Participants are stored ordered
// (ParticipantA < ParticipantB) so the pair is unique regardless of who
// started the chat.
type Conversation struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ParticipantA int64     `gorm:"uniqueIndex:conversation_pair;not null" json:"participant_a"`
	ParticipantB int64     `gorm:"uniqueIndex:conversation_pair;index;not null" json:"participant_b"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID int64) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID int64) int64 {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// ConversationSummary is the denormalised view served to clients: the
// conversation row plus counterpart profile, last message, unread count and
// presence.
type ConversationSummary struct {
	ID          int64          `json:"id"`
	OtherUser   ProfileSummary `json:"other_user"`
	LastMessage *Message       `json:"last_message,omitempty"`
	UnreadCount int64          `json:"unread_count"`
	IsOnline    bool           `json:"is_online"`
	LastSeen    *time.Time     `json:"last_seen,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// LastActivity is the last message time, or the creation time for empty
// conversations.
func (s ConversationSummary) LastActivity() time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.CreatedAt
}
