package models

import "time"

type Presence struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	IsOnline  bool      `json:"is_online"`
	LastSeen  time.Time `json:"last_seen"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Presence) TableName() string {
	return "presence"
}
