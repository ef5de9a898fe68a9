package models

type Category struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug        string `gorm:"size:60;uniqueIndex" json:"slug"`
	Name        string `gorm:"size:120" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
}

type CategoryWithCount struct {
	Category
	PostCount int64 `json:"post_count"`
}
