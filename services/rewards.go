package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"creaverse/db"
	"creaverse/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const LeaderboardKey = "leaderboard"

// pointsPerVotingPower is how many reward points add one unit of voting power
// on top of the base power of 1.
const pointsPerVotingPower = 100

type RewardService struct {
	rdb *redis.Client
}

func NewRewardService(rdb *redis.Client) *RewardService {
	return &RewardService{rdb: rdb}
}

type userPoints struct {
	UserID int64
	Total  int64
}

// Award records points for the user and recomputes their voting power.
func (s *RewardService) Award(ctx context.Context, userID int64, reason string, points int64) error {
	_, err := s.award(ctx, userID, reason, nil, points)
	return err
}

// AwardOnce is Award for actions that earn points only once. A repeated
// sourceKey is a no-op and reports false.
func (s *RewardService) AwardOnce(ctx context.Context, userID int64, reason, sourceKey string, points int64) (bool, error) {
	return s.award(ctx, userID, reason, &sourceKey, points)
}

func (s *RewardService) award(ctx context.Context, userID int64, reason string, sourceKey *string, points int64) (bool, error) {
	err := db.GetWriteDB(ctx).Transaction(func(tx *gorm.DB) error {
		event := &models.RewardEvent{UserID: userID, Reason: reason, Points: points, SourceKey: sourceKey}
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		var total int64
		if err := tx.Model(&models.RewardEvent{}).
			Where("user_id = ?", userID).
			Select("COALESCE(SUM(points), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			Update("voting_power", VotingPowerFor(total)).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) && sourceKey != nil {
		slog.DebugContext(ctx, "reward already granted", "user_id", userID, "source", *sourceKey)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("award points: %w", err)
	}

	s.incrementLeaderboard(ctx, userID, points)
	return true, nil
}

// incrementIfExists only touches an existing sorted set: ZINCRBY on a missing
// key would create a set holding a single user.
var incrementIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('ZINCRBY', KEYS[1], ARGV[1], ARGV[2])
end
return false
`)

func (s *RewardService) incrementLeaderboard(ctx context.Context, userID int64, points int64) {
	if s.rdb == nil {
		return
	}
	err := incrementIfExists.Run(ctx, s.rdb, []string{LeaderboardKey}, points, strconv.FormatInt(userID, 10)).Err()
	if err == nil {
		return
	}
	if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "leaderboard increment failed", "user_id", userID, "error", err)
	}
	// набора нет или он недоступен: пересобираем из SQL
	if err := s.ReconcileLeaderboard(ctx); err != nil {
		slog.WarnContext(ctx, "leaderboard rebuild failed", "user_id", userID, "error", err)
	}
}

// VotingPowerFor maps accumulated points to governance voting power.
func VotingPowerFor(points int64) float64 {
	if points < 0 {
		points = 0
	}
	return float64(1 + points/pointsPerVotingPower)
}

func (s *RewardService) Points(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := db.GetReadOnlyDB(ctx).Model(&models.RewardEvent{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	return total, err
}

// Leaderboard returns the top users by points, read from the Redis sorted set
// and rebuilt from SQL when the set is missing.
func (s *RewardService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.leaderboardFromCache(ctx, limit)
	if err != nil || rows == nil {
		rows, err = s.leaderboardFromDB(ctx, limit)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	summaries, err := loadSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		summary, ok := summaries[r.UserID]
		if !ok {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			Rank:   len(entries) + 1,
			User:   summary,
			Points: r.Total,
		})
	}
	return entries, nil
}

// leaderboardFromCache returns nil rows on a cache miss.
func (s *RewardService) leaderboardFromCache(ctx context.Context, limit int) ([]userPoints, error) {
	if s.rdb == nil {
		return nil, nil
	}
	members, err := s.rdb.ZRevRangeWithScores(ctx, LeaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	rows := make([]userPoints, 0, len(members))
	for _, m := range members {
		member, _ := m.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		rows = append(rows, userPoints{UserID: id, Total: int64(m.Score)})
	}
	return rows, nil
}

func (s *RewardService) leaderboardFromDB(ctx context.Context, limit int) ([]userPoints, error) {
	rows := []userPoints{}
	query := db.GetReadOnlyDB(ctx).Model(&models.RewardEvent{}).
		Select("user_id, SUM(points) AS total").
		Group("user_id").
		Order("total DESC, user_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate leaderboard: %w", err)
	}
	return rows, nil
}

// ReconcileLeaderboard rebuilds the Redis sorted set from the reward events.
func (s *RewardService) ReconcileLeaderboard(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	rows, err := s.leaderboardFromDB(ctx, 0)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, LeaderboardKey)
	for _, r := range rows {
		pipe.ZAdd(ctx, LeaderboardKey, &redis.Z{
			Score:  float64(r.Total),
			Member: strconv.FormatInt(r.UserID, 10),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	slog.InfoContext(ctx, "leaderboard reconciled", "users", len(rows))
	return nil
}

// RunReconcileWorker periodically rebuilds the leaderboard until ctx is done.
func (s *RewardService) RunReconcileWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ReconcileLeaderboard(ctx); err != nil {
				slog.ErrorContext(ctx, "leaderboard reconciliation failed", "error", err)
			}
		}
	}
}
