package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"creaverse/db"
	"creaverse/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

// setupTestDB points db.ORM at a fresh in-memory sqlite database.
func setupTestDB(t *testing.T) {
	t.Helper()
	database, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))

	prev := db.ORM
	db.ORM = database
	t.Cleanup(func() {
		db.ORM = prev
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func createTestUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:    username,
		DisplayName: gofakeit.Name(),
		Password:    "x",
		VotingPower: 1,
	}
	require.NoError(t, db.ORM.Create(user).Error)
	return user
}

func insertMessage(t *testing.T, conversationID, senderID int64, content string, read bool) models.Message {
	t.Helper()
	msg := models.Message{ConversationID: conversationID, SenderID: senderID, Content: content}
	require.NoError(t, db.ORM.Create(&msg).Error)
	if read {
		require.NoError(t, db.ORM.Model(&msg).Update("is_read", true).Error)
		msg.IsRead = true
	}
	return msg
}

// recordingBus records published events and forwards them to next, if set.
type recordingBus struct {
	mu     sync.Mutex
	events []Event
	next   Publisher
}

func (b *recordingBus) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	if b.next != nil {
		return b.next.Publish(ctx, ev)
	}
	return nil
}

func (b *recordingBus) ofType(typ EventType) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var result []Event
	for _, ev := range b.events {
		if ev.Type == typ {
			result = append(result, ev)
		}
	}
	return result
}

func username(prefix string) string {
	return strings.ToLower(prefix + "_" + gofakeit.LetterN(6))
}
