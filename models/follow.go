package models

import "time"

// Follow is a one-directional subscription of FollowerID to FolloweeID.
type Follow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FollowerID int64     `gorm:"uniqueIndex:follow_pair;not null" json:"follower_id"`
	FolloweeID int64     `gorm:"uniqueIndex:follow_pair;index;not null" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}
