package db

import (
	"errors"
	"fmt"
	"log/slog"

	"creaverse/models"

	"gorm.io/gorm"
)

// DefaultCategories are created on first migration.
var DefaultCategories = []models.Category{
	{Slug: "art", Name: "Art", Description: "Illustration, painting and digital art"},
	{Slug: "music", Name: "Music", Description: "Tracks, covers and live sessions"},
	{Slug: "photography", Name: "Photography"},
	{Slug: "video", Name: "Video", Description: "Short films and clips"},
	{Slug: "writing", Name: "Writing", Description: "Poetry, stories and essays"},
	{Slug: "design", Name: "Design"},
}

type migration struct {
	name string
	// postgresOnly migrations are skipped on sqlite
	postgresOnly bool
	apply        func(tx *gorm.DB) error
}

var migrations = []migration{
	{name: "0001_seed_categories", apply: seedCategories},
	{name: "0002_users_username_lower", postgresOnly: true, apply: func(tx *gorm.DB) error {
		return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (lower(username))`).Error
	}},
	{name: "0003_messages_unread_partial", postgresOnly: true, apply: func(tx *gorm.DB) error {
		return tx.Exec(`
			CREATE INDEX IF NOT EXISTS idx_messages_unread
			ON messages (conversation_id, sender_id) WHERE is_read = false
		`).Error
	}},
}

// Migrate creates the schema and applies the named data migrations that have
// not been recorded in the migration table yet.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{}, &models.Migration{}, &models.Follow{},
		&models.Conversation{}, &models.Message{}, &models.Presence{},
		&models.Category{}, &models.Post{}, &models.PostLike{}, &models.Comment{},
		&models.Share{}, &models.Review{}, &models.Notification{},
		&models.Proposal{}, &models.Vote{}, &models.RewardEvent{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	isPostgres := db.Dialector.Name() == "postgres"
	for _, m := range migrations {
		if m.postgresOnly && !isPostgres {
			continue
		}
		var applied models.Migration
		err = db.Where("name = ?", m.name).First(&applied).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Create(&models.Migration{Name: m.name}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		slog.Info("migration applied", "name", m.name)
	}
	return nil
}

func seedCategories(tx *gorm.DB) error {
	for _, c := range DefaultCategories {
		c := c
		if err := tx.Where("slug = ?", c.Slug).FirstOrCreate(&c).Error; err != nil {
			return err
		}
	}
	return nil
}
