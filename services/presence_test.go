package services

import (
	"context"
	"testing"
	"time"

	"creaverse/db"
	"creaverse/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceUnknownUserIsOffline(t *testing.T) {
	setupTestDB(t)
	svc := NewPresenceService(nil)

	p, err := svc.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, p.IsOnline)
	assert.True(t, p.LastSeen.IsZero())
}

func TestPresenceUpsert(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	svc := NewPresenceService(nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.SetOnline(ctx, 1)
	require.NoError(t, err)
	p, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, p.IsOnline)

	svc.now = func() time.Time { return fixed.Add(time.Minute) }
	_, err = svc.SetOffline(ctx, 1)
	require.NoError(t, err)
	p, err = svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, p.IsOnline)
	assert.True(t, p.LastSeen.Equal(fixed.Add(time.Minute)))

	var rows int64
	require.NoError(t, db.ORM.Model(&models.Presence{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestPresenceRedisMirror(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	rdb, mr := setupTestRedis(t)
	svc := NewPresenceService(rdb)

	_, err := svc.SetOnline(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "true", mr.HGet("presence:7", "is_online"))

	// a row written behind the cache's back is found through the SQL fallback
	require.NoError(t, db.ORM.Create(&models.Presence{UserID: 8, IsOnline: true, LastSeen: time.Now()}).Error)

	all, err := svc.GetMany(ctx, []int64{7, 8, 9})
	require.NoError(t, err)
	assert.True(t, all[7].IsOnline)
	assert.True(t, all[8].IsOnline)
	assert.False(t, all[9].IsOnline)
}
