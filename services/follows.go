package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"creaverse/db"
	"creaverse/models"

	"gorm.io/gorm"
)

// FeedInvalidator drops a cached feed after the followed set changes.
type FeedInvalidator interface {
	InvalidateUserFeed(ctx context.Context, userID int64) error
}

type FollowService struct {
	bus   Publisher
	feeds FeedInvalidator
}

func NewFollowService(bus Publisher, feeds FeedInvalidator) *FollowService {
	return &FollowService{bus: bus, feeds: feeds}
}

func (fs *FollowService) invalidate(ctx context.Context, userID int64) {
	if fs.feeds == nil {
		return
	}
	if err := fs.feeds.InvalidateUserFeed(ctx, userID); err != nil {
		slog.WarnContext(ctx, "feed invalidation failed", "user_id", userID, "error", err)
	}
}

// Follow подписывает follower на followee
func (fs *FollowService) Follow(ctx context.Context, followerID, followeeID int64) error {
	if followerID == followeeID {
		return fmt.Errorf("%w: cannot follow yourself", ErrInvalidInput)
	}

	// Проверяем, что пользователи существуют
	var userCount int64
	err := db.GetReadOnlyDB(ctx).Model(&models.User{}).Where("id IN ?", []int64{followerID, followeeID}).Count(&userCount).Error
	if err != nil {
		return fmt.Errorf("error checking users: %w", err)
	}
	if userCount != 2 {
		return ErrNotFound
	}

	err = db.GetWriteDB(ctx).Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("follow: %w", ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}

	fs.invalidate(ctx, followerID)
	if fs.bus != nil {
		_ = fs.bus.Publish(ctx, NewEvent(EventFollow, followeeID, followerID, followerID, "started following you", nil))
	}
	return nil
}

func (fs *FollowService) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	res := db.GetWriteDB(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return fmt.Errorf("failed to unfollow: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	fs.invalidate(ctx, followerID)
	return nil
}

// Followers возвращает подписчиков пользователя
func (fs *FollowService) Followers(ctx context.Context, userID int64) ([]models.ProfileSummary, error) {
	var ids []int64
	err := db.GetReadOnlyDB(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Order("created_at DESC").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return orderedSummaries(ctx, ids)
}

// Following возвращает пользователей, на которых подписан userID
func (fs *FollowService) Following(ctx context.Context, userID int64) ([]models.ProfileSummary, error) {
	ids, err := fs.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return orderedSummaries(ctx, ids)
}

func (fs *FollowService) FollowingIDs(ctx context.Context, userID int64) ([]int64, error) {
	return followingIDs(ctx, userID)
}

func followingIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := db.GetReadOnlyDB(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("created_at DESC").
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return ids, nil
}

func followerIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := db.GetReadOnlyDB(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Pluck("follower_id", &ids).Error
	return ids, err
}

func orderedSummaries(ctx context.Context, ids []int64) ([]models.ProfileSummary, error) {
	summaries, err := loadSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]models.ProfileSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := summaries[id]; ok {
			result = append(result, s)
		}
	}
	return result, nil
}
