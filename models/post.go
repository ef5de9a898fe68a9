package models

import "time"

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaText  MediaType = "text"
)

// Post - модель поста пользователя
type Post struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"index" json:"user_id"`
	Caption      string    `gorm:"type:text" json:"caption"`
	MediaURL     string    `gorm:"size:1024" json:"media_url,omitempty"`
	MediaType    MediaType `gorm:"size:16" json:"media_type"`
	ThumbnailURL string    `gorm:"size:1024" json:"thumbnail_url,omitempty"`
	CategoryID   *int64    `gorm:"index" json:"category_id,omitempty"`
	Tags         []string  `gorm:"type:text;serializer:json" json:"tags"`
	IsTokenized  bool      `gorm:"default:false" json:"is_tokenized"`
	TokenPrice   float64   `gorm:"default:0" json:"token_price,omitempty"`

	LikesCount    int64 `gorm:"default:0" json:"likes_count"`
	CommentsCount int64 `gorm:"default:0" json:"comments_count"`
	SharesCount   int64 `gorm:"default:0" json:"shares_count"`
	ReviewsCount  int64 `gorm:"default:0" json:"reviews_count"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

type PostLike struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"uniqueIndex:like_pair;not null" json:"post_id"`
	UserID    int64     `gorm:"uniqueIndex:like_pair;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"index;not null" json:"post_id"`
	UserID    int64     `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Share struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"index;not null" json:"post_id"`
	UserID    int64     `gorm:"not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    int64     `gorm:"uniqueIndex:review_pair;not null" json:"post_id"`
	UserID    int64     `gorm:"uniqueIndex:review_pair;not null" json:"user_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Content   string    `gorm:"type:text" json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedPost - пост с информацией об авторе для ленты
type FeedPost struct {
	Post
	Author ProfileSummary `json:"author"`
}

// FeedResponse - ответ API для ленты
type FeedResponse struct {
	Posts   []FeedPost `json:"posts"`
	HasMore bool       `json:"has_more"`
	LastID  int64      `json:"last_id,omitempty"`
}

// BrowseResponse is one step of the sequential profile post browser.
type BrowseResponse struct {
	Post    FeedPost `json:"post"`
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	PrevID  *int64   `json:"prev_id,omitempty"`
	NextID  *int64   `json:"next_id,omitempty"`
	Matched bool     `json:"matched"`
}
