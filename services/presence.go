package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"creaverse/db"
	"creaverse/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm/clause"
)

const PRESENCE_KEY_PREFIX = "presence:"

type PresenceService struct {
	rdb *redis.Client
	now func() time.Time
}

func NewPresenceService(rdb *redis.Client) *PresenceService {
	return &PresenceService{rdb: rdb, now: time.Now}
}

func (s *PresenceService) SetOnline(ctx context.Context, userID int64) (*models.Presence, error) {
	return s.set(ctx, userID, true)
}

func (s *PresenceService) SetOffline(ctx context.Context, userID int64) (*models.Presence, error) {
	return s.set(ctx, userID, false)
}

func (s *PresenceService) set(ctx context.Context, userID int64, online bool) (*models.Presence, error) {
	now := s.now().UTC()
	p := &models.Presence{UserID: userID, IsOnline: online, LastSeen: now, UpdatedAt: now}

	err := db.GetWriteDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_online", "last_seen", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, fmt.Errorf("upsert presence: %w", err)
	}

	if s.rdb != nil {
		err = s.rdb.HSet(ctx, presenceKey(userID),
			"is_online", strconv.FormatBool(online),
			"last_seen", strconv.FormatInt(now.UnixNano(), 10),
		).Err()
		if err != nil {
			slog.WarnContext(ctx, "presence cache write failed", "user_id", userID, "error", err)
		}
	}
	return p, nil
}

// Get returns the presence of the user; users never seen are offline with a
// zero LastSeen.
func (s *PresenceService) Get(ctx context.Context, userID int64) (models.Presence, error) {
	all, err := s.GetMany(ctx, []int64{userID})
	if err != nil {
		return models.Presence{}, err
	}
	return all[userID], nil
}

// GetMany reads presence from Redis and falls back to SQL for cache misses.
func (s *PresenceService) GetMany(ctx context.Context, ids []int64) (map[int64]models.Presence, error) {
	ids = uniqueIDs(ids)
	result := make(map[int64]models.Presence, len(ids))
	missing := ids

	if s.rdb != nil && len(ids) > 0 {
		missing = make([]int64, 0, len(ids))
		pipe := s.rdb.Pipeline()
		cmds := make([]*redis.StringStringMapCmd, len(ids))
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, presenceKey(id))
		}
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			slog.WarnContext(ctx, "presence cache read failed", "error", err)
			missing = ids
		} else {
			for i, cmd := range cmds {
				if p, ok := presenceFromHash(ids[i], cmd.Val()); ok {
					result[ids[i]] = p
				} else {
					missing = append(missing, ids[i])
				}
			}
		}
	}

	if len(missing) > 0 {
		var rows []models.Presence
		if err := db.GetReadOnlyDB(ctx).Where("user_id IN ?", missing).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load presence: %w", err)
		}
		for _, p := range rows {
			result[p.UserID] = p
		}
	}

	for _, id := range ids {
		if _, ok := result[id]; !ok {
			result[id] = models.Presence{UserID: id}
		}
	}
	return result, nil
}

func presenceFromHash(userID int64, h map[string]string) (models.Presence, bool) {
	if len(h) == 0 {
		return models.Presence{}, false
	}
	online, err := strconv.ParseBool(h["is_online"])
	if err != nil {
		return models.Presence{}, false
	}
	nanos, err := strconv.ParseInt(h["last_seen"], 10, 64)
	if err != nil {
		return models.Presence{}, false
	}
	lastSeen := time.Unix(0, nanos).UTC()
	return models.Presence{UserID: userID, IsOnline: online, LastSeen: lastSeen, UpdatedAt: lastSeen}, true
}

func presenceKey(userID int64) string {
	return PRESENCE_KEY_PREFIX + strconv.FormatInt(userID, 10)
}
