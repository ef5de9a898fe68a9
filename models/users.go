package models

import (
	"time"
)

// User is a Creaverse profile.
type User struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username    string    `gorm:"size:60;uniqueIndex" json:"username"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	AvatarURL   string    `gorm:"size:512" json:"avatar_url,omitempty"`
	Bio         string    `gorm:"type:text" json:"bio,omitempty"`
	Verified    bool      `gorm:"default:false" json:"verified"`
	Password    string    `gorm:"size:255" json:"-"`
	VotingPower float64   `gorm:"default:1" json:"voting_power"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Summary returns the partial profile used in conversation lists, feeds and
// notifications.
func (u User) Summary() ProfileSummary {
	return ProfileSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Verified:    u.Verified,
	}
}

type ProfileSummary struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Verified    bool   `json:"verified"`
}

type Migration struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:60;uniqueIndex" json:"name"`
	AppliedAt time.Time `gorm:"autoCreateTime" json:"applied_at"`
}
