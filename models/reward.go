package models

import "time"

type RewardEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Reason    string    `gorm:"size:32" json:"reason"`
	Points    int64     `json:"points"`
	// SourceKey identifies the action that earned the points; NULL for
	// actions that may be rewarded repeatedly.
	SourceKey *string   `gorm:"size:128;uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type LeaderboardEntry struct {
	Rank   int            `json:"rank"`
	User   ProfileSummary `json:"user"`
	Points int64          `json:"points"`
}
